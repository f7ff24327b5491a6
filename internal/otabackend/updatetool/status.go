package updatetool

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
)

type rawStatus struct {
	Compatible  string          `json:"compatible"`
	Booted      json.RawMessage `json:"booted"`
	BootPrimary string          `json:"boot_primary"`
	Slots       json.RawMessage `json:"slots"`
}

type rawSlot struct {
	State      string `json:"state"`
	BootName   string `json:"bootname"`
	Device     string `json:"device"`
	BootStatus string `json:"boot_status"`
}

// ParseStatus decodes the JSON printed by `rauc status --output-format=json`.
//
// RAUC prints "slots" as a list of single-key objects and "booted" as the
// boot name; older releases and some wrappers use a name->slot object and
// {"slot": "..."} instead. Both shapes are accepted.
func ParseStatus(data []byte) (core.SlotStatus, error) {
	var raw rawStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.SlotStatus{}, fmt.Errorf("decode status: %w", err)
	}

	status := core.SlotStatus{
		Compatible:  raw.Compatible,
		BootPrimary: raw.BootPrimary,
	}

	if len(raw.Booted) > 0 {
		var name string
		if err := json.Unmarshal(raw.Booted, &name); err == nil {
			status.BootedSlot = name
		} else {
			var obj struct {
				Slot string `json:"slot"`
			}
			if err := json.Unmarshal(raw.Booted, &obj); err != nil {
				return core.SlotStatus{}, fmt.Errorf("decode booted: %w", err)
			}
			status.BootedSlot = obj.Slot
		}
	}

	slots, err := decodeSlots(raw.Slots)
	if err != nil {
		return core.SlotStatus{}, err
	}
	status.Slots = slots

	return status, nil
}

func decodeSlots(data json.RawMessage) ([]core.Slot, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	merged := map[string]rawSlot{}

	var list []map[string]rawSlot
	if err := json.Unmarshal(data, &list); err == nil {
		for _, entry := range list {
			for name, s := range entry {
				merged[name] = s
			}
		}
	} else if err := json.Unmarshal(data, &merged); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}

	slots := make([]core.Slot, 0, len(merged))
	for name, s := range merged {
		state := s.State
		if state == "" {
			state = "unknown"
		}
		slots = append(slots, core.Slot{
			Name:       name,
			State:      state,
			BootName:   s.BootName,
			Device:     s.Device,
			BootStatus: s.BootStatus,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Name < slots[j].Name })

	return slots, nil
}
