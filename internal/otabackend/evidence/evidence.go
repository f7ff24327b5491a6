// Package evidence collects the diagnostic material attached to OTA events.
package evidence

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/autopeer-io/ota-backend/pkg/log"
)

// FilesystemStat is the free and total space of one mounted path.
type FilesystemStat struct {
	Path       string `json:"path"`
	FreeBytes  uint64 `json:"free_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
}

// Collector gathers journal excerpts and filesystem usage.
type Collector struct {
	// Journalctl is the binary used to read the journal.
	Journalctl string
	// Timeout bounds a single journal read.
	Timeout time.Duration
	// Paths are reported in every event.
	Paths []string
}

func NewCollector(paths ...string) *Collector {
	return &Collector{
		Journalctl: "journalctl",
		Timeout:    5 * time.Second,
		Paths:      paths,
	}
}

// JournalTail returns the last non-blank lines of the given unit's journal,
// or nil if the journal cannot be read.
func (c *Collector) JournalTail(ctx context.Context, unit string, lines int) []string {
	if unit == "" || lines <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.Journalctl, "-u", unit, "-n", strconv.Itoa(lines), "--no-pager").Output()
	if err != nil {
		log.Debug("Journal not available", "unit", unit, "error", err)
		return nil
	}

	var tail []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tail = append(tail, line)
		}
	}
	return tail
}

// Filesystem reports usage for every configured path that can be stat'ed.
func (c *Collector) Filesystem() []FilesystemStat {
	stats := make([]FilesystemStat, 0, len(c.Paths))
	for _, p := range c.Paths {
		st, err := Statfs(p)
		if err != nil {
			log.Debug("Skipping filesystem evidence", "path", p, "error", err)
			continue
		}
		stats = append(stats, st)
	}
	return stats
}

func Statfs(path string) (FilesystemStat, error) {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return FilesystemStat{}, err
	}
	bsize := uint64(fs.Bsize)
	return FilesystemStat{
		Path:       path,
		FreeBytes:  uint64(fs.Bavail) * bsize,
		TotalBytes: uint64(fs.Blocks) * bsize,
	}, nil
}
