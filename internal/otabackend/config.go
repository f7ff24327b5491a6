package otabackend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/internal/otabackend/download"
	"github.com/autopeer-io/ota-backend/internal/otabackend/event"
	"github.com/autopeer-io/ota-backend/internal/otabackend/evidence"
	"github.com/autopeer-io/ota-backend/internal/otabackend/hal"
	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
	"github.com/autopeer-io/ota-backend/internal/otabackend/server"
	httpserver "github.com/autopeer-io/ota-backend/internal/otabackend/server/http"
	mqttserver "github.com/autopeer-io/ota-backend/internal/otabackend/server/mqtt"
	"github.com/autopeer-io/ota-backend/internal/otabackend/storage"
	"github.com/autopeer-io/ota-backend/internal/otabackend/telemetry"
	"github.com/autopeer-io/ota-backend/internal/otabackend/updatetool"
	"github.com/autopeer-io/ota-backend/internal/pkg/mqtt/paths"
	"github.com/autopeer-io/ota-backend/pkg/log"
	"github.com/autopeer-io/ota-backend/pkg/mqtt"
	mqtttopic "github.com/autopeer-io/ota-backend/pkg/mqtt/topic"
	"github.com/autopeer-io/ota-backend/pkg/options"
)

// Config is everything needed to assemble an Agent.
type Config struct {
	HttpOptions       *options.HttpOptions
	MqttOptions       *options.MqttOptions
	S3Options         *options.S3Options
	OTAOptions        *options.OTAOptions
	TelemetryOptions  *options.TelemetryOptions
	DeviceOptions     *options.DeviceOptions
	ContextOptions    *options.ContextOptions
	UpdateToolOptions *options.UpdateToolOptions
}

func (cfg *Config) NewAgent() (*Agent, error) {
	deviceID := cfg.DeviceOptions.ID
	if deviceID == "" {
		if deviceID = DiscoverDeviceID(); deviceID == "" {
			return nil, fmt.Errorf("FATAL: no device ID configured or discovered")
		}
	}

	resolver, err := cfg.newResolver()
	if err != nil {
		return nil, err
	}
	downloader := download.NewManager(download.WithResolver(resolver))

	collector := evidence.NewCollector(cfg.evidencePaths()...)
	builder := event.NewBuilder(deviceID, *cfg.ContextOptions, collector,
		event.WithJournal(cfg.TelemetryOptions.JournalUnit, cfg.TelemetryOptions.JournalLines),
	)

	topics := mqtttopic.NewBuilder(cfg.MqttOptions.TopicRoot)
	var mqttClient mqtt.Client
	if cfg.MqttOptions.Enabled || cfg.TelemetryOptions.Transport == options.TransportMQTT {
		if mqttClient, err = cfg.initMqttClient(deviceID, topics); err != nil {
			return nil, fmt.Errorf("failed to init mqtt client: %w", err)
		}
	}

	sink := telemetry.NewSink(cfg.OTAOptions.LogDir, cfg.newTransport(deviceID, mqttClient, topics), cfg.TelemetryOptions.PostTimeout)

	manager := ota.NewManager(
		ota.Config{
			BundleDir:           cfg.OTAOptions.BundleDir,
			DownloadRetries:     cfg.OTAOptions.DownloadRetries,
			DownloadTimeout:     cfg.OTAOptions.DownloadTimeout,
			RebootAfterApply:    cfg.OTAOptions.RebootAfterApply,
			MarkGoodOnCommit:    cfg.OTAOptions.MarkGoodOnCommit,
			FailOnMarkGoodError: cfg.OTAOptions.FailOnMarkGoodError,
			CurrentVersion:      ReadVersion(cfg.OTAOptions.VersionFile, cfg.OTAOptions.CurrentVersion),
		},
		cfg.newUpdateTool(),
		hal.NewRebooter(cfg.UpdateToolOptions.RebootCommand),
		downloader,
		builder,
		sink,
	)

	servers := []server.Server{
		httpserver.NewServer(cfg.HttpOptions, manager),
		server.Func(func(ctx context.Context) error {
			sink.Run(ctx, cfg.TelemetryOptions.FlushInterval)
			return nil
		}),
	}
	if mqttClient != nil {
		servers = append(servers, mqttserver.NewServer(mqttClient, topics, deviceID, manager, cfg.MqttOptions.Enabled))
	}

	return NewAgent(deviceID, manager, builder, server.NewManager(servers...)), nil
}

func (cfg *Config) newUpdateTool() core.UpdateTool {
	if cfg.UpdateToolOptions.Mock {
		log.Warn("Using simulated update tool")
		return updatetool.NewMock()
	}
	return updatetool.NewRauc(cfg.UpdateToolOptions.Binary)
}

func (cfg *Config) newResolver() (*storage.Resolver, error) {
	if cfg.S3Options.Endpoint == "" {
		return storage.NewResolver(nil, 0), nil
	}
	provider, err := storage.NewMinIOProvider(cfg.S3Options)
	if err != nil {
		return nil, err
	}
	return storage.NewResolver(provider, cfg.S3Options.PresignExpiry), nil
}

// newTransport returns nil when no collector is configured.
func (cfg *Config) newTransport(deviceID string, client mqtt.Client, topics *mqtttopic.Builder) telemetry.Transport {
	switch cfg.TelemetryOptions.Transport {
	case options.TransportMQTT:
		return telemetry.NewMQTTTransport(client, topics.Build(paths.OTAEvents, deviceID))
	default:
		if cfg.TelemetryOptions.CollectorURL == "" {
			log.Warn("No collector configured, events are kept in the offline queue")
			return nil
		}
		return telemetry.NewHTTPTransport(cfg.TelemetryOptions.CollectorURL, &http.Client{})
	}
}

func (cfg *Config) evidencePaths() []string {
	paths := []string{cfg.OTAOptions.LogDir}
	if cfg.OTAOptions.BundleDir != cfg.OTAOptions.LogDir {
		paths = append(paths, cfg.OTAOptions.BundleDir)
	}
	return paths
}

func (cfg *Config) initMqttClient(deviceID string, topics *mqtttopic.Builder) (mqtt.Client, error) {
	mqttConfig := cfg.MqttOptions.ToClientConfig()
	if mqttConfig.ClientID == "" {
		mqttConfig.ClientID = fmt.Sprintf("ota-backend-%s", deviceID)
	}

	mqttConfig.WillTopic = topics.Build(paths.Online, deviceID)
	mqttConfig.WillPayload = mqttserver.WillMessage()
	mqttConfig.WillQoS = 1
	mqttConfig.WillRetain = true

	return mqtt.NewClient(mqttConfig)
}
