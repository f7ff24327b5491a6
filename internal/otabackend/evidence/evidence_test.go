package evidence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeJournalctl(t *testing.T, script string) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "journalctl")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+script), 0o755))
	return bin
}

func TestJournalTail(t *testing.T) {
	c := NewCollector()
	c.Journalctl = fakeJournalctl(t, `echo "unit=$2 lines=$4"; echo; echo "  second  "`+"\n")

	assert.Equal(t, []string{"unit=ota-backend.service lines=50", "second"},
		c.JournalTail(context.Background(), "ota-backend.service", 50))
}

func TestJournalTail_Failure(t *testing.T) {
	c := NewCollector()
	c.Journalctl = fakeJournalctl(t, "exit 1\n")
	assert.Empty(t, c.JournalTail(context.Background(), "x", 10))

	c.Journalctl = filepath.Join(t.TempDir(), "missing")
	assert.Empty(t, c.JournalTail(context.Background(), "x", 10))

	assert.Empty(t, c.JournalTail(context.Background(), "", 10))
}

func TestFilesystem(t *testing.T) {
	dir := t.TempDir()
	c := NewCollector(dir, filepath.Join(dir, "does-not-exist"))

	stats := c.Filesystem()
	require.Len(t, stats, 1)
	assert.Equal(t, dir, stats[0].Path)
	assert.Positive(t, stats[0].TotalBytes)
	assert.LessOrEqual(t, stats[0].FreeBytes, stats[0].TotalBytes)
}
