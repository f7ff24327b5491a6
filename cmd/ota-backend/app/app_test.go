package app

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readYAML(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return v
}

func TestDecodeContext(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		wantCountry string
		wantBattery int
		wantLatency int
		wantRSSI    int
	}{
		{
			name:        "missing section keeps defaults",
			doc:         "ota:\n  download-retries: 3\n",
			wantCountry: "DE",
			wantBattery: 85,
			wantLatency: 373,
			wantRSSI:    -55,
		},
		{
			name:        "explicit zeros are kept",
			doc:         "context:\n  power:\n    battery-pct: 0\n  network:\n    latency-ms: 0\n    rssi-dbm: 0\n",
			wantCountry: "DE",
			wantBattery: 0,
			wantLatency: 0,
			wantRSSI:    0,
		},
		{
			name:        "partial override",
			doc:         "context:\n  region:\n    country: NL\n  power:\n    battery-pct: 7\n",
			wantCountry: "NL",
			wantBattery: 7,
			wantLatency: 373,
			wantRSSI:    -55,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := decodeContext(readYAML(t, tt.doc))
			require.NoError(t, err)

			assert.Equal(t, tt.wantCountry, c.Region.Country)
			assert.Equal(t, "Europe/Berlin", c.Region.Timezone)
			assert.Equal(t, tt.wantBattery, c.Power.BatteryPct)
			assert.Equal(t, tt.wantLatency, c.Network.LatencyMs)
			assert.Equal(t, tt.wantRSSI, c.Network.RSSIDbm)
		})
	}
}

func TestDecodeContext_InvalidValue(t *testing.T) {
	_, err := decodeContext(readYAML(t, "context:\n  power:\n    battery-pct: lots\n"))
	assert.Error(t, err)
}
