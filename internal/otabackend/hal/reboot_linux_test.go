//go:build linux

package hal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRebooter(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "rebooted")

	r := NewRebooter([]string{"touch", marker})
	require.NoError(t, r.Reboot(context.Background()))
	assert.FileExists(t, marker)

	_, err := os.Stat(marker)
	require.NoError(t, err)

	assert.Error(t, NewRebooter([]string{"false"}).Reboot(context.Background()))
	assert.Error(t, NewRebooter(nil).Reboot(context.Background()))
}
