//go:build linux

package hal

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

// commandRebooter asks the init system to reboot the device.
type commandRebooter struct {
	command []string
}

// NewRebooter returns a Rebooter running command (e.g. systemctl reboot).
func NewRebooter(command []string) core.Rebooter {
	return &commandRebooter{command: command}
}

func (r *commandRebooter) Reboot(ctx context.Context) error {
	if len(r.command) == 0 {
		return fmt.Errorf("no reboot command configured")
	}

	log.Info("System is rebooting NOW...", "command", r.command)
	unix.Sync()

	out, err := exec.CommandContext(ctx, r.command[0], r.command[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("reboot command %v failed: %w: %s", r.command, err, out)
	}
	return nil
}
