package core

import "context"

// ExitUnavailable is the exit code reported when the update tool could not
// be run at all.
const ExitUnavailable = -1

// Slot describes one A/B partition as reported by the update tool.
type Slot struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	BootName string `json:"bootname,omitempty"`
	Device   string `json:"device,omitempty"`

	// BootStatus is "good" or "bad" as last marked, empty when unknown.
	BootStatus string `json:"boot_status,omitempty"`
}

// SlotStatus is the update tool's view of the slots. The zero value means
// the tool gave no answer.
type SlotStatus struct {
	Compatible  string
	BootedSlot  string
	BootPrimary string
	Slots       []Slot
}

// UpdateTool is the port to the privileged A/B update tool.
//
// Install and MarkGood return the tool's exit code. A non-nil error means
// the tool could not be run (missing binary, killed, ...) and the exit code
// is then ExitUnavailable. A nil error with a non-zero code means the tool
// ran and reported failure.
type UpdateTool interface {
	Status(ctx context.Context) (SlotStatus, error)
	Install(ctx context.Context, bundlePath string) (int, error)
	MarkGood(ctx context.Context) (int, error)
}

// Rebooter restarts the device.
type Rebooter interface {
	Reboot(ctx context.Context) error
}
