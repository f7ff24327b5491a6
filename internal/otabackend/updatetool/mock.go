package updatetool

import (
	"context"
	"os"
	"sync"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

// Mock simulates a two slot system for development hosts without RAUC.
// Installing a bundle that exists on disk succeeds and makes the other slot
// the primary; a missing bundle fails with exit code 1.
type Mock struct {
	mu      sync.Mutex
	booted  string
	primary string
	good    map[string]bool
}

var _ core.UpdateTool = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{
		booted:  "A",
		primary: "A",
		good:    map[string]bool{"A": true},
	}
}

func (m *Mock) Status(ctx context.Context) (core.SlotStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	slots := []core.Slot{
		{Name: "rootfs.0", BootName: "A", Device: "/dev/mock0p2", State: m.slotState("A"), BootStatus: m.bootStatus("A")},
		{Name: "rootfs.1", BootName: "B", Device: "/dev/mock0p3", State: m.slotState("B"), BootStatus: m.bootStatus("B")},
	}
	return core.SlotStatus{
		Compatible:  "ota-backend-mock",
		BootedSlot:  m.booted,
		BootPrimary: m.primary,
		Slots:       slots,
	}, nil
}

func (m *Mock) slotState(bootname string) string {
	if bootname == m.booted {
		return "booted"
	}
	return "inactive"
}

// bootStatus is empty for a slot that was never installed or marked.
func (m *Mock) bootStatus(bootname string) string {
	good, ok := m.good[bootname]
	switch {
	case !ok:
		return ""
	case good:
		return "good"
	default:
		return "bad"
	}
}

func (m *Mock) Install(ctx context.Context, bundlePath string) (int, error) {
	if _, err := os.Stat(bundlePath); err != nil {
		log.Warn("[UpdateTool-Mock] Bundle not found", "path", bundlePath)
		return 1, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	target := "B"
	if m.booted == "B" {
		target = "A"
	}
	m.primary = target
	m.good[target] = false
	log.Info("[UpdateTool-Mock] Bundle written to inactive slot", "path", bundlePath, "slot", target)
	return 0, nil
}

func (m *Mock) MarkGood(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.good[m.booted] = true
	log.Info("[UpdateTool-Mock] Booted slot marked good", "slot", m.booted)
	return 0, nil
}
