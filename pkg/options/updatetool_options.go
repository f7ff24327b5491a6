package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*UpdateToolOptions)(nil)

// UpdateToolOptions selects the external A/B update tool.
type UpdateToolOptions struct {
	Binary string `json:"binary" mapstructure:"binary"`

	// Mock replaces the tool with an in-process simulation for development
	// hosts without RAUC.
	Mock bool `json:"mock" mapstructure:"mock"`

	RebootCommand []string `json:"reboot-command" mapstructure:"reboot-command"`
}

func NewUpdateToolOptions() *UpdateToolOptions {
	return &UpdateToolOptions{
		Binary:        "rauc",
		RebootCommand: []string{"systemctl", "reboot"},
	}
}

func (o *UpdateToolOptions) Validate() []error {
	errors := []error{}

	if !o.Mock && o.Binary == "" {
		errors = append(errors, fmt.Errorf("update-tool.binary must not be empty"))
	}
	if len(o.RebootCommand) == 0 {
		errors = append(errors, fmt.Errorf("update-tool.reboot-command must not be empty"))
	}

	return errors
}

func (o *UpdateToolOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Binary, "update-tool.binary", o.Binary, "Path or name of the RAUC binary.")
	fs.BoolVar(&o.Mock, "update-tool.mock", o.Mock, "Simulate the update tool instead of invoking RAUC.")
	fs.StringSliceVar(&o.RebootCommand, "update-tool.reboot-command", o.RebootCommand, "Command used to reboot the device.")
}
