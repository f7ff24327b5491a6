package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*TelemetryOptions)(nil)

const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// TelemetryOptions configures delivery of OTA events to the fleet backend.
type TelemetryOptions struct {
	// CollectorURL receives one JSON event per POST. When empty and the
	// transport is http, every event goes straight to the offline queue.
	CollectorURL string `json:"collector-url" mapstructure:"collector-url"`

	// Transport is "http" or "mqtt".
	Transport string `json:"transport" mapstructure:"transport"`

	PostTimeout   time.Duration `json:"post-timeout" mapstructure:"post-timeout"`
	FlushInterval time.Duration `json:"flush-interval" mapstructure:"flush-interval"`

	JournalUnit  string `json:"journal-unit" mapstructure:"journal-unit"`
	JournalLines int    `json:"journal-lines" mapstructure:"journal-lines"`
}

func NewTelemetryOptions() *TelemetryOptions {
	return &TelemetryOptions{
		Transport:     TransportHTTP,
		PostTimeout:   10 * time.Second,
		FlushInterval: 30 * time.Second,
		JournalUnit:   "ota-backend.service",
		JournalLines:  50,
	}
}

func (o *TelemetryOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	switch o.Transport {
	case TransportHTTP, TransportMQTT:
	default:
		errors = append(errors, fmt.Errorf("telemetry.transport must be %q or %q, got %q", TransportHTTP, TransportMQTT, o.Transport))
	}
	if o.PostTimeout <= 0 {
		errors = append(errors, fmt.Errorf("telemetry.post-timeout must be positive"))
	}
	if o.FlushInterval <= 0 {
		errors = append(errors, fmt.Errorf("telemetry.flush-interval must be positive"))
	}

	return errors
}

func (o *TelemetryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.CollectorURL, "telemetry.collector-url", o.CollectorURL, "HTTP endpoint receiving OTA events.")
	fs.StringVar(&o.Transport, "telemetry.transport", o.Transport, "Event transport, 'http' or 'mqtt'.")
	fs.DurationVar(&o.PostTimeout, "telemetry.post-timeout", o.PostTimeout, "Timeout of a single event delivery.")
	fs.DurationVar(&o.FlushInterval, "telemetry.flush-interval", o.FlushInterval, "Interval between offline queue flushes.")
	fs.StringVar(&o.JournalUnit, "telemetry.journal-unit", o.JournalUnit, "systemd unit whose journal tail is attached to events.")
	fs.IntVar(&o.JournalLines, "telemetry.journal-lines", o.JournalLines, "Number of journal lines attached to events.")
}
