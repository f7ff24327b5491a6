package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-backend/pkg/options"
)

func TestServerOptions_Defaults(t *testing.T) {
	o := NewServerOptions()
	require.NoError(t, o.Complete())
	assert.NoError(t, o.Validate())

	cfg, err := o.Config()
	require.NoError(t, err)
	assert.Same(t, o.OTAOptions, cfg.OTAOptions)
	assert.Same(t, o.ContextOptions, cfg.ContextOptions)
}

func TestServerOptions_Flags(t *testing.T) {
	fss := NewServerOptions().Flags()

	for _, name := range []string{"http", "mqtt", "s3", "ota", "telemetry", "device", "context", "update-tool", "log"} {
		assert.Contains(t, fss.FlagSets, name)
	}
	assert.NotNil(t, fss.FlagSet("ota").Lookup("ota.download-retries"))
	assert.NotNil(t, fss.FlagSet("context").Lookup("context.power.battery-pct"))
}

func TestServerOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *ServerOptions)
		wantErr string
	}{
		{
			name:    "bad address",
			mutate:  func(o *ServerOptions) { o.HttpOptions.Addr = "nope" },
			wantErr: "host:port",
		},
		{
			name:    "no retries",
			mutate:  func(o *ServerOptions) { o.OTAOptions.DownloadRetries = 0 },
			wantErr: "ota.download-retries",
		},
		{
			name: "mqtt transport without broker",
			mutate: func(o *ServerOptions) {
				o.TelemetryOptions.Transport = options.TransportMQTT
				o.MqttOptions.Broker = ""
			},
			wantErr: "mqtt.broker is required",
		},
		{
			name:    "mqtt topic root ignored when unused",
			mutate:  func(o *ServerOptions) { o.MqttOptions.TopicRoot = "" },
			wantErr: "",
		},
		{
			name: "mqtt topic root checked when enabled",
			mutate: func(o *ServerOptions) {
				o.MqttOptions.Enabled = true
				o.MqttOptions.TopicRoot = ""
			},
			wantErr: "mqtt.topic-root",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewServerOptions()
			tt.mutate(o)
			err := o.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerOptions_CompleteTrimsDeviceID(t *testing.T) {
	o := NewServerOptions()
	o.DeviceOptions.ID = "  vw-ivi-0042\n"
	require.NoError(t, o.Complete())
	assert.Equal(t, "vw-ivi-0042", o.DeviceOptions.ID)
}
