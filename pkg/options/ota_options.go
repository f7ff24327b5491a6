package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*OTAOptions)(nil)

// OTAOptions controls how a single update run is carried out.
type OTAOptions struct {
	// BundleDir is where downloaded bundles are stored as {runID}.raucb.
	BundleDir string `json:"bundle-dir" mapstructure:"bundle-dir"`

	// LogDir holds the per-run event logs and the offline telemetry queue.
	LogDir string `json:"log-dir" mapstructure:"log-dir"`

	DownloadRetries int           `json:"download-retries" mapstructure:"download-retries"`
	DownloadTimeout time.Duration `json:"download-timeout" mapstructure:"download-timeout"`

	// RebootAfterApply makes the run request a reboot once the bundle is
	// installed. COMMIT then happens in the next boot.
	RebootAfterApply bool `json:"reboot-after-apply" mapstructure:"reboot-after-apply"`

	MarkGoodOnCommit bool `json:"mark-good-on-commit" mapstructure:"mark-good-on-commit"`

	// FailOnMarkGoodError reports a failed mark-good as a COMMIT failure.
	// When false the result of mark-good is ignored.
	FailOnMarkGoodError bool `json:"fail-on-mark-good-error" mapstructure:"fail-on-mark-good-error"`

	// CurrentVersion is reported when VersionFile is unset or unreadable.
	CurrentVersion string `json:"current-version" mapstructure:"current-version"`
	VersionFile    string `json:"version-file" mapstructure:"version-file"`
}

func NewOTAOptions() *OTAOptions {
	return &OTAOptions{
		BundleDir:        "/data/ota",
		LogDir:           "/data/log/ota",
		DownloadRetries:  3,
		DownloadTimeout:  30 * time.Second,
		RebootAfterApply: false,
		MarkGoodOnCommit: true,
		CurrentVersion:   "unknown",
	}
}

func (o *OTAOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.BundleDir == "" {
		errors = append(errors, fmt.Errorf("ota.bundle-dir must not be empty"))
	}
	if o.LogDir == "" {
		errors = append(errors, fmt.Errorf("ota.log-dir must not be empty"))
	}
	if o.DownloadRetries < 1 {
		errors = append(errors, fmt.Errorf("ota.download-retries must be at least 1, got %d", o.DownloadRetries))
	}
	if o.DownloadTimeout <= 0 {
		errors = append(errors, fmt.Errorf("ota.download-timeout must be positive"))
	}

	return errors
}

func (o *OTAOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BundleDir, "ota.bundle-dir", o.BundleDir, "Directory downloaded bundles are written to.")
	fs.StringVar(&o.LogDir, "ota.log-dir", o.LogDir, "Directory for per-run event logs and the offline telemetry queue.")
	fs.IntVar(&o.DownloadRetries, "ota.download-retries", o.DownloadRetries, "Maximum number of bundle download attempts.")
	fs.DurationVar(&o.DownloadTimeout, "ota.download-timeout", o.DownloadTimeout, "Timeout of a single download attempt.")
	fs.BoolVar(&o.RebootAfterApply, "ota.reboot-after-apply", o.RebootAfterApply, "Reboot into the new slot right after a successful install.")
	fs.BoolVar(&o.MarkGoodOnCommit, "ota.mark-good-on-commit", o.MarkGoodOnCommit, "Mark the booted slot good during COMMIT.")
	fs.BoolVar(&o.FailOnMarkGoodError, "ota.fail-on-mark-good-error", o.FailOnMarkGoodError, "Fail the run when marking the slot good fails.")
	fs.StringVar(&o.CurrentVersion, "ota.current-version", o.CurrentVersion, "Firmware version reported when no version file is available.")
	fs.StringVar(&o.VersionFile, "ota.version-file", o.VersionFile, "File holding the running firmware version (e.g. /etc/sw-version).")
}
