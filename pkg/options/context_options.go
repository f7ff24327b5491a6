package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*ContextOptions)(nil)

// ContextOptions holds the simulated vehicle context attached to every
// event. Values are static configuration, not sensor reads, so tests and
// lab setups can inject any scenario. The section is reloaded when the
// config file changes.
type ContextOptions struct {
	Region  RegionContext  `json:"region" mapstructure:"region"`
	Power   PowerContext   `json:"power" mapstructure:"power"`
	Network NetworkContext `json:"network" mapstructure:"network"`
}

type RegionContext struct {
	Country  string `json:"country" mapstructure:"country"`
	City     string `json:"city" mapstructure:"city"`
	Timezone string `json:"timezone" mapstructure:"timezone"`
}

type PowerContext struct {
	Source     string `json:"source" mapstructure:"source"`
	BatteryPct int    `json:"battery-pct" mapstructure:"battery-pct"`
}

type NetworkContext struct {
	RSSIDbm   int `json:"rssi-dbm" mapstructure:"rssi-dbm"`
	LatencyMs int `json:"latency-ms" mapstructure:"latency-ms"`
}

// NewContextOptions returns the default context. Configuration overlays only
// the keys it sets, so an explicit zero (an empty battery, say) is kept.
func NewContextOptions() *ContextOptions {
	return &ContextOptions{
		Region: RegionContext{
			Country:  "DE",
			City:     "Düsseldorf",
			Timezone: "Europe/Berlin",
		},
		Power: PowerContext{
			Source:     "BATTERY",
			BatteryPct: 85,
		},
		Network: NetworkContext{
			RSSIDbm:   -55,
			LatencyMs: 373,
		},
	}
}

func (o *ContextOptions) Validate() []error {
	return nil
}

func (o *ContextOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Region.Country, "context.region.country", o.Region.Country, "Simulated region country code.")
	fs.StringVar(&o.Region.City, "context.region.city", o.Region.City, "Simulated region city.")
	fs.StringVar(&o.Region.Timezone, "context.region.timezone", o.Region.Timezone, "Simulated region timezone.")
	fs.StringVar(&o.Power.Source, "context.power.source", o.Power.Source, "Simulated power source (BATTERY, CHARGER, ...).")
	fs.IntVar(&o.Power.BatteryPct, "context.power.battery-pct", o.Power.BatteryPct, "Simulated battery charge in percent.")
	fs.IntVar(&o.Network.RSSIDbm, "context.network.rssi-dbm", o.Network.RSSIDbm, "Simulated signal strength in dBm.")
	fs.IntVar(&o.Network.LatencyMs, "context.network.latency-ms", o.Network.LatencyMs, "Simulated network latency in milliseconds.")
}
