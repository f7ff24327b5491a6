package ota

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"k8s.io/utils/ptr"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
)

// Service is what the control surfaces need from the orchestrator.
type Service interface {
	Start(ctx context.Context, runID, bundleURL, targetVersion string) error
	Status(ctx context.Context) Status
	RequestReboot(ctx context.Context) error
}

var _ Service = (*Manager)(nil)

// StartRequest is the body of a start command, over HTTP or MQTT.
type StartRequest struct {
	OTAID         string `json:"ota_id"`
	URL           string `json:"url"`
	TargetVersion string `json:"target_version"`
}

// Complete assigns a run ID when the caller left it empty.
func (r *StartRequest) Complete() {
	if r.OTAID == "" {
		r.OTAID = uuid.NewString()
	}
}

func (r *StartRequest) Validate() error {
	var errs []error
	if r.URL == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if r.TargetVersion == "" {
		errs = append(errs, errors.New("target_version is required"))
	}
	return errors.Join(errs...)
}

type StartResponse struct {
	OK    bool   `json:"ok"`
	OTAID string `json:"ota_id,omitempty"`
}

// StatusResponse is the wire form of Status. Unknown fields are null.
type StatusResponse struct {
	Compatible     *string     `json:"compatible"`
	CurrentSlot    *string     `json:"current_slot"`
	Slots          []core.Slot `json:"slots"`
	CurrentVersion *string     `json:"current_version"`
	TargetVersion  *string     `json:"target_version"`
	Phase          *string     `json:"phase"`
	Event          *string     `json:"event"`
	LastError      *string     `json:"last_error"`
	ActiveOTAID    *string     `json:"active_ota_id"`
}

func NewStatusResponse(s Status) StatusResponse {
	resp := StatusResponse{
		Compatible:     optional(s.Slots.Compatible),
		CurrentSlot:    optional(s.Slots.BootedSlot),
		Slots:          s.Slots.Slots,
		CurrentVersion: optional(s.State.CurrentVersion),
		TargetVersion:  optional(s.State.TargetVersion),
		Phase:          optional(string(s.State.Phase)),
		Event:          optional(string(s.State.LastEvent)),
		ActiveOTAID:    optional(s.State.ActiveRunID),
	}
	if resp.Slots == nil {
		resp.Slots = []core.Slot{}
	}
	if s.State.LastError != nil {
		resp.LastError = ptr.To(string(*s.State.LastError))
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return ptr.To(s)
}
