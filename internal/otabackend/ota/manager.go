// Package ota runs OTA updates: download, install, reboot decision and commit,
// reporting every phase transition as a telemetry event.
package ota

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/internal/otabackend/download"
	"github.com/autopeer-io/ota-backend/internal/otabackend/event"
	"github.com/autopeer-io/ota-backend/internal/pkg/metrics"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

// ErrAlreadyRunning rejects a Start while another run is active.
var ErrAlreadyRunning = errors.New("OTA already running")

const statusTimeout = 10 * time.Second

// Config controls a run.
type Config struct {
	BundleDir           string
	DownloadRetries     int
	DownloadTimeout     time.Duration
	RebootAfterApply    bool
	MarkGoodOnCommit    bool
	FailOnMarkGoodError bool
	CurrentVersion      string
}

// Downloader fetches a bundle to a local path.
type Downloader interface {
	Fetch(ctx context.Context, url, dest string, maxAttempts int, timeout time.Duration, logf download.LogFunc) (core.ErrorCode, int)
}

// EventBuilder assembles the event for one transition.
type EventBuilder interface {
	Build(ctx context.Context, p event.Params) event.Event
}

// Emitter records and delivers events.
type Emitter interface {
	Emit(ctx context.Context, ev event.Event)
}

// Manager owns the RunState and allows one run at a time.
type Manager struct {
	cfg        Config
	tool       core.UpdateTool
	rebooter   core.Rebooter
	downloader Downloader
	builder    EventBuilder
	sink       Emitter

	// mu guards state and fsm.
	mu    sync.Mutex
	fsm   *FiniteStateMachine
	state core.RunState

	wg sync.WaitGroup
}

func NewManager(cfg Config, tool core.UpdateTool, rebooter core.Rebooter, downloader Downloader, builder EventBuilder, sink Emitter) *Manager {
	return &Manager{
		cfg:        cfg,
		tool:       tool,
		rebooter:   rebooter,
		downloader: downloader,
		builder:    builder,
		sink:       sink,
		fsm:        NewFiniteStateMachine(),
		state:      core.RunState{CurrentVersion: cfg.CurrentVersion},
	}
}

// Status is the orchestrator state combined with the update tool's view of
// the slots.
type Status struct {
	State core.RunState
	Slots core.SlotStatus
}

// Start claims the orchestrator for runID and returns as soon as the run is
// in DOWNLOAD. The run continues in the background and is not tied to ctx's
// cancellation.
func (m *Manager) Start(ctx context.Context, runID, bundleURL, targetVersion string) error {
	m.mu.Lock()
	if !m.state.Idle() || !m.fsm.Can(EventStart) {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if err := m.fsm.Event(ctx, EventStart, &m.state, runID, targetVersion); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("start run %s: %w", runID, err)
	}
	r := &run{
		id:      runID,
		url:     bundleURL,
		target:  targetVersion,
		current: m.state.CurrentVersion,
	}
	m.mu.Unlock()

	log.Info("OTA run started", "runID", runID, "url", bundleURL, "targetVersion", targetVersion)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(context.WithoutCancel(ctx), r)
	}()
	return nil
}

// Snapshot returns a copy of the current RunState.
func (m *Manager) Snapshot() core.RunState {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	if s.LastError != nil {
		code := *s.LastError
		s.LastError = &code
	}
	return s
}

// Status queries the update tool and returns it with the RunState. A failing
// tool yields an empty SlotStatus.
func (m *Manager) Status(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	slots, err := m.tool.Status(ctx)
	if err != nil {
		log.Warn("Update tool status unavailable", "error", err)
		slots = core.SlotStatus{}
	}
	return Status{State: m.Snapshot(), Slots: slots}
}

// RequestReboot asks the system to reboot now.
func (m *Manager) RequestReboot(ctx context.Context) error {
	log.Info("Reboot requested")
	return m.rebooter.Reboot(ctx)
}

// Wait blocks until every started run has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// run is owned by the goroutine executing it.
type run struct {
	id      string
	url     string
	target  string
	current string
	log     []string
}

func (r *run) logf(line string) {
	r.log = append(r.log, line)
}

func (m *Manager) execute(ctx context.Context, r *run) {
	ctx, logger := log.ForRun(ctx, r.id, r.target)

	r.logf("DOWNLOAD START")
	m.emit(ctx, r, core.PhaseDownload, core.EventStart, nil)

	bundle := filepath.Join(m.cfg.BundleDir, bundleName(r.id))
	code, status := m.downloader.Fetch(ctx, r.url, bundle, m.cfg.DownloadRetries, m.cfg.DownloadTimeout, r.logf)
	if code != "" {
		logger.Warn("Download failed", "code", code, "status", status)
		m.fail(ctx, r, core.PhaseDownload, code, downloadMessage(code, status))
		return
	}

	m.transition(ctx, EventApply)
	r.logf("APPLY START")
	m.emit(ctx, r, core.PhaseApply, core.EventStart, nil)

	rc, err := m.tool.Install(ctx, bundle)
	if err != nil || rc != 0 {
		logger.Error(err, "Install failed", "rc", rc, "bundle", bundle)
		r.logf(fmt.Sprintf("APPLY FAIL rc=%d", rc))
		m.fail(ctx, r, core.PhaseApply, core.ErrInstallFailed, installMessage(rc, err))
		return
	}

	r.logf("APPLY OK")
	m.transition(ctx, EventReboot)
	m.emit(ctx, r, core.PhaseApply, core.EventOK, nil)

	if m.cfg.RebootAfterApply {
		logger.Info("Rebooting into the new slot")
		metrics.RunsTotal.WithLabelValues("rebooting").Inc()
		if err := m.rebooter.Reboot(ctx); err != nil {
			logger.Error(err, "Reboot request failed, run stays in REBOOT")
		}
		return
	}

	m.transition(ctx, EventCommit)
	r.logf("COMMIT START")
	m.emit(ctx, r, core.PhaseCommit, core.EventStart, nil)

	if m.cfg.MarkGoodOnCommit {
		rc, err := m.tool.MarkGood(ctx)
		if err != nil || rc != 0 {
			logger.Warn("Mark-good failed", "rc", rc, "error", err)
			if m.cfg.FailOnMarkGoodError {
				r.logf(fmt.Sprintf("COMMIT FAIL rc=%d", rc))
				m.fail(ctx, r, core.PhaseCommit, core.ErrMarkGoodFailed, fmt.Sprintf("Mark good failed (rc=%d)", rc))
				return
			}
		}
	}

	r.logf("COMMIT OK")
	m.emit(ctx, r, core.PhaseCommit, core.EventOK, nil)
	m.transition(ctx, EventFinish)

	metrics.RunsTotal.WithLabelValues("succeeded").Inc()
	logger.Info("OTA run committed")
}

func (m *Manager) fail(ctx context.Context, r *run, phase core.Phase, code core.ErrorCode, msg string) {
	m.emit(ctx, r, phase, core.EventFail, &event.Failure{Code: code, Message: msg})
	m.transition(ctx, EventFail, code)
	metrics.RunsTotal.WithLabelValues("failed").Inc()
}

func (m *Manager) transition(ctx context.Context, name string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(ctx, name, append([]any{&m.state}, args...)...); err != nil {
		log.ForPhase(ctx, m.fsm.Current()).Error(err, "Invalid phase transition", "event", name)
	}
}

func (m *Manager) emit(ctx context.Context, r *run, phase core.Phase, kind core.EventKind, failure *event.Failure) {
	ev := m.builder.Build(ctx, event.Params{
		RunID:          r.id,
		CurrentVersion: r.current,
		TargetVersion:  r.target,
		Phase:          phase,
		Kind:           kind,
		Failure:        failure,
		RunLog:         r.log,
	})
	log.ForPhase(ctx, string(phase)).Debug("Emitting event", "event", kind)
	m.sink.Emit(ctx, ev)
}

func downloadMessage(code core.ErrorCode, status int) string {
	if code != core.ErrHTTP5xx {
		return "Download error"
	}
	if status >= http.StatusInternalServerError {
		if text := http.StatusText(status); text != "" {
			return fmt.Sprintf("Server error: %d %s", status, text)
		}
		return fmt.Sprintf("Server error: %d", status)
	}
	return "Server error: 5xx"
}

func installMessage(rc int, err error) string {
	if rc == core.ExitUnavailable && err != nil {
		return "Update tool unavailable: " + err.Error()
	}
	return fmt.Sprintf("Update tool install failed (rc=%d)", rc)
}

// bundleName keeps the bundle inside the bundle directory whatever the run
// ID contains.
func bundleName(runID string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(runID)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name + ".raucb"
}
