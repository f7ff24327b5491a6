package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var _ IOptions = (*DeviceOptions)(nil)

// DeviceOptions identifies this device in telemetry.
type DeviceOptions struct {
	// ID may be set empty to discover it from OTA_DEVICE_ID or
	// /etc/ota-backend/device-id at startup.
	ID string `json:"id" mapstructure:"id"`
}

func NewDeviceOptions() *DeviceOptions {
	return &DeviceOptions{ID: "vw-ivi-0026"}
}

func (o *DeviceOptions) Validate() []error {
	if strings.ContainsAny(o.ID, "/+#") {
		return []error{fmt.Errorf("device.id %q must not contain MQTT topic characters", o.ID)}
	}
	return nil
}

func (o *DeviceOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.ID, "device.id", o.ID, "Device identifier reported in telemetry and used in MQTT topics.")
}
