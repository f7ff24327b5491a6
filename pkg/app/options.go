package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by the top level options of a command.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped into named sets for help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in defaults that depend on other options.
	Complete() error

	// Validate checks the completed options.
	Validate() error
}
