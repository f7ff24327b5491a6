package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/autopeer-io/ota-backend/pkg/log"
)

// Server is anything the agent runs until shutdown: the control surfaces and
// the telemetry flusher.
type Server interface {
	Start(ctx context.Context) error
}

// Func adapts a blocking function to Server.
type Func func(ctx context.Context) error

func (f Func) Start(ctx context.Context) error { return f(ctx) }

// Manager manages the lifecycle of all servers.
type Manager struct {
	servers []Server
}

func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

// Start launches all servers in parallel. The first error cancels the
// others; Start returns once all have stopped.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range m.servers {
		srv := srv
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
