package otabackend

import (
	"os"
	"strings"

	"github.com/autopeer-io/ota-backend/pkg/log"
)

const (
	deviceIDEnv  = "OTA_DEVICE_ID"
	deviceIDFile = "/etc/ota-backend/device-id"
)

// DiscoverDeviceID looks for a device ID provisioned outside the config:
// the OTA_DEVICE_ID environment variable, then /etc/ota-backend/device-id.
func DiscoverDeviceID() string {
	if envID := os.Getenv(deviceIDEnv); envID != "" {
		log.Info("DeviceID detected from env", "id", envID)
		return envID
	}

	if id := readTrimmed(deviceIDFile); id != "" {
		log.Info("DeviceID detected from file", "id", id)
		return id
	}

	return ""
}

// ReadVersion returns the first line of path, or fallback if the file is
// missing or empty.
func ReadVersion(path, fallback string) string {
	if path == "" {
		return fallback
	}
	v := readTrimmed(path)
	if v == "" {
		log.Warn("Version file unreadable, using configured version", "path", path, "version", fallback)
		return fallback
	}
	if i := strings.IndexByte(v, '\n'); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}

func readTrimmed(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}
