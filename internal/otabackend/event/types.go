package event

import (
	"github.com/autopeer-io/ota-backend/internal/otabackend/evidence"
)

// Event is one OTA telemetry record as delivered to the fleet collector.
// Events are never modified after Build returns them.
type Event struct {
	Ts       string   `json:"ts"`
	Device   Device   `json:"device"`
	OTA      OTA      `json:"ota"`
	Context  Context  `json:"context"`
	Error    Error    `json:"error"`
	Evidence Evidence `json:"evidence"`
}

type Device struct {
	DeviceID string `json:"device_id"`
}

type OTA struct {
	OTAID          string `json:"ota_id"`
	CurrentVersion string `json:"current_version"`
	TargetVersion  string `json:"target_version"`
	Phase          string `json:"phase"`
	Event          string `json:"event"`
}

type Context struct {
	Region  Region  `json:"region"`
	Time    Time    `json:"time"`
	Power   Power   `json:"power"`
	Network Network `json:"network"`
}

type Region struct {
	Country  string `json:"country"`
	City     string `json:"city"`
	Timezone string `json:"timezone"`
}

type Time struct {
	Local      string `json:"local"`
	DayOfWeek  string `json:"day_of_week"`
	TimeBucket string `json:"time_bucket"`
}

type Power struct {
	Source  string  `json:"source"`
	Battery Battery `json:"battery"`
}

type Battery struct {
	Pct int `json:"pct"`
}

type Network struct {
	RSSIDbm   int `json:"rssi_dbm"`
	LatencyMs int `json:"latency_ms"`
}

// Error is empty ({} on the wire) for START and OK events.
type Error struct {
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable *bool  `json:"retryable,omitempty"`
}

// IsZero reports whether the event carries no failure.
func (e Error) IsZero() bool {
	return e.Code == "" && e.Message == "" && e.Retryable == nil
}

type Evidence struct {
	OTALog     []string                  `json:"ota_log"`
	JournalLog []string                  `json:"journal_log"`
	Filesystem []evidence.FilesystemStat `json:"filesystem"`
}
