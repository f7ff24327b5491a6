// Package telemetry persists OTA events and delivers them to the fleet
// backend, falling back to an on-disk queue while the backend is unreachable.
package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/autopeer-io/ota-backend/internal/otabackend/event"
	"github.com/autopeer-io/ota-backend/internal/pkg/metrics"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

const (
	queueFile    = "queue.jsonl"
	inflightFile = queueFile + ".inflight"
	cursorFile   = inflightFile + ".pos"
	runLogFile   = "events.jsonl"
)

// Sink writes every event to its run log and delivers it, queueing it on
// failure. It is safe for concurrent use.
type Sink struct {
	logDir    string
	transport Transport
	timeout   time.Duration

	// mu serializes writes to the run logs and the queue file, including
	// the rename that starts a drain.
	mu sync.Mutex
	// flushMu allows one drain at a time.
	flushMu sync.Mutex
}

// NewSink returns a Sink rooted at logDir. A nil transport means no
// collector is configured and every event is queued.
func NewSink(logDir string, transport Transport, timeout time.Duration) *Sink {
	return &Sink{
		logDir:    logDir,
		transport: transport,
		timeout:   timeout,
	}
}

// Emit records ev in its run log and hands it to the transport. Failures
// never reach the caller, undeliverable events end up in the queue.
func (s *Sink) Emit(ctx context.Context, ev event.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error(err, "Failed to encode event", "runID", ev.OTA.OTAID)
		return
	}

	if err := s.appendRunLog(ev.OTA.OTAID, payload); err != nil {
		log.Error(err, "Failed to write run log", "runID", ev.OTA.OTAID)
	}

	s.deliverOrQueue(ctx, payload)
}

// Flush drains the queue once, redelivering every queued event. Events that
// still fail are queued again. A drain file left behind by an interrupted
// flush is processed before the live queue is touched, starting after the
// last line its cursor records as handled.
func (s *Sink) Flush(ctx context.Context) error {
	if s.transport == nil {
		return nil
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	inflight := filepath.Join(s.logDir, inflightFile)
	cursor := filepath.Join(s.logDir, cursorFile)

	s.mu.Lock()
	_, err := os.Stat(inflight)
	switch {
	case err == nil:
		log.Info("Resuming interrupted queue flush", "file", inflight)
	case errors.Is(err, os.ErrNotExist):
		// A cursor without its drain file belongs to a finished drain.
		if err = removeIfExists(cursor); err == nil {
			err = os.Rename(filepath.Join(s.logDir, queueFile), inflight)
		}
	}
	s.mu.Unlock()

	if errors.Is(err, os.ErrNotExist) {
		metrics.TelemetryQueueLength.Set(0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim queue: %w", err)
	}

	entries, err := readEntries(inflight)
	if err != nil {
		return fmt.Errorf("read queue: %w", err)
	}
	pending := entriesAfter(entries, readCursor(cursor))
	metrics.TelemetryQueueLength.Set(float64(len(pending)))

	delivered := 0
	for _, e := range pending {
		if !json.Valid(e.line) {
			log.Warn("Dropping malformed queued event", "line", truncate(string(e.line), 120))
		} else if s.deliverOrQueue(ctx, e.line) {
			delivered++
		}
		if err := writeCursor(cursor, e.end); err != nil {
			log.Error(err, "Failed to record queue progress", "file", cursor)
		}
	}

	// The cursor outlives a failed remove, so a retry skips every line.
	if err := os.Remove(inflight); err != nil {
		return fmt.Errorf("remove drained queue: %w", err)
	}
	if err := removeIfExists(cursor); err != nil {
		log.Warn("Failed to remove queue cursor", "file", cursor, "error", err)
	}

	log.Debug("Queue flushed", "queued", len(pending), "delivered", delivered)
	return nil
}

// Run flushes the queue immediately and then every interval until ctx is
// done.
func (s *Sink) Run(ctx context.Context, interval time.Duration) {
	log.Info("Starting telemetry queue flusher", "interval", interval, "dir", s.logDir)
	wait.UntilWithContext(ctx, func(ctx context.Context) {
		if err := s.Flush(ctx); err != nil {
			log.Error(err, "Queue flush failed")
		}
	}, interval)
	log.Info("Telemetry queue flusher stopped")
}

// deliverOrQueue reports whether payload reached the collector.
func (s *Sink) deliverOrQueue(ctx context.Context, payload []byte) bool {
	err := s.deliver(ctx, payload)
	if err == nil {
		metrics.TelemetryDeliveriesTotal.WithLabelValues("delivered").Inc()
		return true
	}

	log.Debug("Event not delivered, queueing", "error", err)
	metrics.TelemetryDeliveriesTotal.WithLabelValues("queued").Inc()
	if err := s.enqueue(payload); err != nil {
		log.Error(err, "Failed to queue event, event lost")
	}
	return false
}

var errNoCollector = errors.New("no collector configured")

func (s *Sink) deliver(ctx context.Context, payload []byte) error {
	if s.transport == nil {
		return errNoCollector
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.transport.Deliver(ctx, payload)
}

func (s *Sink) enqueue(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLine(filepath.Join(s.logDir, queueFile), payload)
}

func (s *Sink) appendRunLog(runID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLine(s.RunLogPath(runID), payload)
}

// RunLogPath is the file holding every event of one run.
func (s *Sink) RunLogPath(runID string) string {
	return filepath.Join(s.logDir, safeName(runID), runLogFile)
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(line)+1)
	buf = append(append(buf, line...), '\n')
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// entry is one queued line and the byte offset just past it.
type entry struct {
	line []byte
	end  int64
}

func readEntries(path string) ([]entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []entry
	var offset int64
	r := bufio.NewReader(f)
	for {
		raw, err := r.ReadBytes('\n')
		offset += int64(len(raw))
		if line := bytes.TrimSpace(raw); len(line) > 0 {
			entries = append(entries, entry{line: line, end: offset})
		}
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
	}
}

func entriesAfter(entries []entry, offset int64) []entry {
	for i, e := range entries {
		if e.end > offset {
			return entries[i:]
		}
	}
	return nil
}

// readCursor returns 0 when the cursor is missing or unreadable, which
// redelivers the whole drain file.
func readCursor(path string) int64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeCursor replaces the cursor atomically.
func writeCursor(path string, offset int64) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(offset, 10)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// safeName keeps a run ID from escaping the log directory.
func safeName(runID string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, runID)
	if name == "" || name == "." || name == ".." {
		return "_" + name
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
