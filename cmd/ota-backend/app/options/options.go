package options

import (
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/autopeer-io/ota-backend/internal/otabackend"
	"github.com/autopeer-io/ota-backend/pkg/app"
	"github.com/autopeer-io/ota-backend/pkg/log"
	"github.com/autopeer-io/ota-backend/pkg/options"
)

type ServerOptions struct {
	HttpOptions       *options.HttpOptions       `json:"http" mapstructure:"http"`
	MqttOptions       *options.MqttOptions       `json:"mqtt" mapstructure:"mqtt"`
	S3Options         *options.S3Options         `json:"s3" mapstructure:"s3"`
	OTAOptions        *options.OTAOptions        `json:"ota" mapstructure:"ota"`
	TelemetryOptions  *options.TelemetryOptions  `json:"telemetry" mapstructure:"telemetry"`
	DeviceOptions     *options.DeviceOptions     `json:"device" mapstructure:"device"`
	ContextOptions    *options.ContextOptions    `json:"context" mapstructure:"context"`
	UpdateToolOptions *options.UpdateToolOptions `json:"update-tool" mapstructure:"update-tool"`
	Log               *log.Options               `json:"log" mapstructure:"log"`
}

var _ app.NamedFlagSetOptions = (*ServerOptions)(nil)

func NewServerOptions() *ServerOptions {
	o := &ServerOptions{
		HttpOptions:       options.NewHttpOptions(),
		MqttOptions:       options.NewMqttOptions(),
		S3Options:         options.NewS3Options(),
		OTAOptions:        options.NewOTAOptions(),
		TelemetryOptions:  options.NewTelemetryOptions(),
		DeviceOptions:     options.NewDeviceOptions(),
		ContextOptions:    options.NewContextOptions(),
		UpdateToolOptions: options.NewUpdateToolOptions(),
		Log:               log.NewOptions(),
	}

	return o
}

func (o *ServerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.OTAOptions.AddFlags(fss.FlagSet("ota"))
	o.TelemetryOptions.AddFlags(fss.FlagSet("telemetry"))
	o.DeviceOptions.AddFlags(fss.FlagSet("device"))
	o.ContextOptions.AddFlags(fss.FlagSet("context"))
	o.UpdateToolOptions.AddFlags(fss.FlagSet("update-tool"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *ServerOptions) Complete() error {
	o.DeviceOptions.ID = strings.TrimSpace(o.DeviceOptions.ID)
	return nil
}

func (o *ServerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.OTAOptions.Validate()...)
	errs = append(errs, o.TelemetryOptions.Validate()...)
	errs = append(errs, o.DeviceOptions.Validate()...)
	errs = append(errs, o.ContextOptions.Validate()...)
	errs = append(errs, o.UpdateToolOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)

	if o.MqttOptions.Enabled || o.TelemetryOptions.Transport == options.TransportMQTT {
		errs = append(errs, o.MqttOptions.Validate()...)
		if o.MqttOptions.Broker == "" {
			errs = append(errs, fmt.Errorf("mqtt.broker is required when MQTT is in use"))
		}
	}

	return utilerrors.NewAggregate(errs)
}

func (o *ServerOptions) Config() (*otabackend.Config, error) {
	return &otabackend.Config{
		HttpOptions:       o.HttpOptions,
		MqttOptions:       o.MqttOptions,
		S3Options:         o.S3Options,
		OTAOptions:        o.OTAOptions,
		TelemetryOptions:  o.TelemetryOptions,
		DeviceOptions:     o.DeviceOptions,
		ContextOptions:    o.ContextOptions,
		UpdateToolOptions: o.UpdateToolOptions,
	}, nil
}
