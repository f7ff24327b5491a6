//go:build !linux

package hal

import (
	"context"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

// mockRebooter only logs; development hosts are never rebooted.
type mockRebooter struct {
	command []string
}

func NewRebooter(command []string) core.Rebooter {
	return &mockRebooter{command: command}
}

func (r *mockRebooter) Reboot(ctx context.Context) error {
	log.Warn("[HAL-Mock] >>> REBOOT REQUESTED <<<", "command", r.command)
	log.Info("[HAL-Mock] Restart the service manually to continue in the new slot.")
	return nil
}
