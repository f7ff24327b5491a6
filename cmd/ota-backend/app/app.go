package app

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/ota-backend/cmd/ota-backend/app/options"
	"github.com/autopeer-io/ota-backend/internal/otabackend"
	"github.com/autopeer-io/ota-backend/pkg/app"
	"github.com/autopeer-io/ota-backend/pkg/log"
	genericoptions "github.com/autopeer-io/ota-backend/pkg/options"
)

const (
	commandName = "ota-backend"
	commandDesc = `The ota-backend runs on the vehicle and drives A/B firmware updates
through DOWNLOAD, APPLY, REBOOT and COMMIT, reporting every step to the fleet
backend with device context and evidence attached.`
)

func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		commandName,
		"Launch the on-device OTA orchestrator",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)
		defer log.Sync()

		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		agent, err := cfg.NewAgent()
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}

		watchContext(agent)

		return agent.Run(ctx)
	}
}

// watchContext reloads the simulated vehicle context whenever the config
// file changes. Other sections need a restart.
func watchContext(agent *otabackend.Agent) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		c, err := decodeContext(viper.GetViper())
		if err != nil {
			log.Error(err, "Failed to reload context", "file", e.Name)
			return
		}
		agent.UpdateContext(c)
	})
	viper.WatchConfig()
}

// decodeContext overlays the keys present under "context" on the defaults.
func decodeContext(v *viper.Viper) (genericoptions.ContextOptions, error) {
	c := genericoptions.NewContextOptions()
	if err := v.UnmarshalKey("context", c); err != nil {
		return genericoptions.ContextOptions{}, err
	}
	return *c, nil
}
