package updatetool

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

// Rauc drives the RAUC command line tool.
type Rauc struct {
	binary string
}

var _ core.UpdateTool = (*Rauc)(nil)

// NewRauc returns an adapter invoking binary (usually "rauc").
func NewRauc(binary string) *Rauc {
	return &Rauc{binary: binary}
}

// Status runs `rauc status --output-format=json`.
func (r *Rauc) Status(ctx context.Context) (core.SlotStatus, error) {
	out, err := exec.CommandContext(ctx, r.binary, "status", "--output-format=json").Output()
	if err != nil {
		return core.SlotStatus{}, fmt.Errorf("%s status: %w", r.binary, err)
	}

	status, err := ParseStatus(out)
	if err != nil {
		return core.SlotStatus{}, fmt.Errorf("%s status: %w", r.binary, err)
	}
	return status, nil
}

// Install runs `rauc install <bundlePath>`.
func (r *Rauc) Install(ctx context.Context, bundlePath string) (int, error) {
	return r.run(ctx, "install", bundlePath)
}

// MarkGood runs `rauc status mark-good` for the booted slot.
func (r *Rauc) MarkGood(ctx context.Context) (int, error) {
	return r.run(ctx, "status", "mark-good")
}

func (r *Rauc) run(ctx context.Context, args ...string) (int, error) {
	cmdline := r.binary + " " + strings.Join(args, " ")

	out, err := exec.CommandContext(ctx, r.binary, args...).CombinedOutput()
	if err == nil {
		log.Debug("Update tool finished", "cmd", cmdline)
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		log.Warn("Update tool reported failure", "cmd", cmdline, "exitCode", exitErr.ExitCode(), "output", lastLine(out))
		return exitErr.ExitCode(), nil
	}

	return core.ExitUnavailable, fmt.Errorf("run %s: %w", cmdline, err)
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1]
}
