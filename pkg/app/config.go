package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFlagName = "config"

// addConfigFlag registers --config and prepares viper to read the file,
// falling back to {basename}.yaml in the working directory or /etc/{basename}.
// Every option can also be set through {BASENAME}_{SECTION}_{KEY}.
func addConfigFlag(basename string, cfgFile *string, fs *pflag.FlagSet) {
	fs.StringVarP(cfgFile, configFlagName, "c", *cfgFile, "Read configuration from the specified file, support JSON, TOML, YAML format.")

	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix(basename))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// readConfig loads the configuration file. A missing default file is not an
// error; a missing explicit file is.
func readConfig(basename, cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("/etc", basename))
		viper.SetConfigName(basename)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read configuration file(%s): %w", cfgFile, err)
	}

	fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	return nil
}

func envPrefix(basename string) string {
	return strings.ToUpper(strings.ReplaceAll(basename, "-", "_"))
}
