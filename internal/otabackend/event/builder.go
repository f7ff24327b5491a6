// Package event assembles OTA telemetry events.
package event

import (
	"context"
	"sync/atomic"
	"time"

	"k8s.io/utils/ptr"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/internal/otabackend/evidence"
	"github.com/autopeer-io/ota-backend/pkg/options"
)

const localTimeLayout = "2006-01-02T15:04:05"

// Failure describes why a phase failed.
type Failure struct {
	Code    core.ErrorCode
	Message string
}

// Params identifies the run and transition an event reports.
type Params struct {
	RunID          string
	CurrentVersion string
	TargetVersion  string
	Phase          core.Phase
	Kind           core.EventKind
	Failure        *Failure
	// RunLog is copied, later appends by the caller do not leak into the event.
	RunLog []string
}

// EvidenceSource supplies the diagnostics attached to every event.
type EvidenceSource interface {
	JournalTail(ctx context.Context, unit string, lines int) []string
	Filesystem() []evidence.FilesystemStat
}

type Builder struct {
	deviceID     string
	journalUnit  string
	journalLines int
	evidence     EvidenceSource
	now          func() time.Time

	context atomic.Pointer[options.ContextOptions]
}

type Option func(*Builder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithJournal selects the systemd unit whose journal tail is attached.
func WithJournal(unit string, lines int) Option {
	return func(b *Builder) {
		b.journalUnit = unit
		b.journalLines = lines
	}
}

// NewBuilder returns a Builder. A nil source attaches no journal or
// filesystem evidence.
func NewBuilder(deviceID string, ctxOpts options.ContextOptions, source EvidenceSource, opts ...Option) *Builder {
	b := &Builder{
		deviceID: deviceID,
		evidence: source,
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	b.SetContext(ctxOpts)
	return b
}

// SetContext swaps the simulated vehicle context used by later events. o is
// used as given, including zero values.
func (b *Builder) SetContext(o options.ContextOptions) {
	b.context.Store(&o)
}

// Context returns the context currently in use.
func (b *Builder) Context() options.ContextOptions {
	return *b.context.Load()
}

// Build collects evidence and assembles the event for p.
func (b *Builder) Build(ctx context.Context, p Params) Event {
	var ev Evidence
	if b.evidence != nil {
		ev.JournalLog = b.evidence.JournalTail(ctx, b.journalUnit, b.journalLines)
		ev.Filesystem = b.evidence.Filesystem()
	}
	return Assemble(b.Context(), b.deviceID, p, ev, b.now())
}

// Assemble builds an event from its inputs alone.
func Assemble(c options.ContextOptions, deviceID string, p Params, ev Evidence, now time.Time) Event {
	ev.OTALog = append(make([]string, 0, len(p.RunLog)), p.RunLog...)
	if ev.JournalLog == nil {
		ev.JournalLog = []string{}
	}
	if ev.Filesystem == nil {
		ev.Filesystem = []evidence.FilesystemStat{}
	}

	var e Error
	if p.Failure != nil {
		e = Error{
			Code:      string(p.Failure.Code),
			Message:   p.Failure.Message,
			Retryable: ptr.To(p.Failure.Code.Retryable()),
		}
	}

	return Event{
		Ts:     now.Format(time.RFC3339),
		Device: Device{DeviceID: deviceID},
		OTA: OTA{
			OTAID:          p.RunID,
			CurrentVersion: p.CurrentVersion,
			TargetVersion:  p.TargetVersion,
			Phase:          string(p.Phase),
			Event:          string(p.Kind),
		},
		Context: Context{
			Region: Region{
				Country:  c.Region.Country,
				City:     c.Region.City,
				Timezone: c.Region.Timezone,
			},
			Time: Time{
				Local:      now.Format(localTimeLayout),
				DayOfWeek:  now.Format("Mon"),
				TimeBucket: TimeBucket(now.Hour()),
			},
			Power: Power{
				Source:  c.Power.Source,
				Battery: Battery{Pct: c.Power.BatteryPct},
			},
			Network: Network{
				RSSIDbm:   c.Network.RSSIDbm,
				LatencyMs: c.Network.LatencyMs,
			},
		},
		Error:    e,
		Evidence: ev,
	}
}

// TimeBucket maps an hour of the day to the coarse bucket used in analytics.
func TimeBucket(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return "MORNING"
	case hour >= 12 && hour < 18:
		return "AFTERNOON"
	case hour >= 18 && hour < 22:
		return "EVENING"
	default:
		return "NIGHT"
	}
}
