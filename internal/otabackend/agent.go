package otabackend

import (
	"context"

	"github.com/autopeer-io/ota-backend/internal/otabackend/event"
	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
	"github.com/autopeer-io/ota-backend/internal/otabackend/server"
	"github.com/autopeer-io/ota-backend/pkg/log"
	"github.com/autopeer-io/ota-backend/pkg/options"
)

// Agent is the ota-backend process: the orchestrator plus everything that
// feeds it commands and carries its events away.
type Agent struct {
	deviceID string
	manager  *ota.Manager
	builder  *event.Builder
	servers  *server.Manager
}

func NewAgent(deviceID string, manager *ota.Manager, builder *event.Builder, servers *server.Manager) *Agent {
	return &Agent{
		deviceID: deviceID,
		manager:  manager,
		builder:  builder,
		servers:  servers,
	}
}

func (a *Agent) Run(ctx context.Context) error {
	state := a.manager.Snapshot()
	log.Info("Starting ota-backend", log.KeyDeviceID, a.deviceID, "currentVersion", state.CurrentVersion)

	err := a.servers.Start(ctx)

	if s := a.manager.Snapshot(); !s.Idle() {
		// Runs are not persisted. The fleet backend sees no terminal event.
		log.Warn("Shutting down with an active run", log.KeyRunID, s.ActiveRunID, log.KeyPhase, s.Phase)
	}
	log.Info("ota-backend shutting down...")
	return err
}

// UpdateContext replaces the simulated vehicle context used for new events.
func (a *Agent) UpdateContext(o options.ContextOptions) {
	a.builder.SetContext(o)
	log.Info("Event context updated", "country", o.Region.Country, "power", o.Power.Source)
}
