package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/internal/pkg/metrics"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

// LogFunc receives the short human readable lines that end up in the run log.
type LogFunc func(line string)

// Resolver turns a bundle URL into one that can be fetched over HTTP.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Manager fetches bundles with bounded retries and linear backoff.
type Manager struct {
	client   *http.Client
	backoff  func(attempt int) time.Duration
	resolver Resolver
}

type Option func(*Manager)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithBackoff replaces the wait between attempts.
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(m *Manager) { m.backoff = f }
}

// WithResolver resolves bundle URLs before the first attempt.
func WithResolver(r Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// LinearBackoff waits 2s after the first attempt, 4s after the second, ...
func LinearBackoff(attempt int) time.Duration {
	return time.Duration(2*attempt) * time.Second
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		client:  &http.Client{},
		backoff: LinearBackoff,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Fetch downloads url to dest in at most maxAttempts attempts.
//
// It returns an empty code on success. Otherwise the code is ErrHTTP5xx when
// the last attempt hit a server error or the last status seen was 5xx, and
// ErrHTTPError for anything else. The returned status is the last HTTP
// status observed, 0 if no response was ever received. A failed attempt may
// leave a truncated file at dest.
func (m *Manager) Fetch(ctx context.Context, url, dest string, maxAttempts int, timeout time.Duration, logf LogFunc) (core.ErrorCode, int) {
	if logf == nil {
		logf = func(string) {}
	}

	src := url
	if m.resolver != nil {
		resolved, err := m.resolver.Resolve(ctx, url)
		if err != nil {
			log.Error(err, "Failed to resolve bundle URL", "url", url)
			logf("DOWNLOAD FAIL error=resolve attempt=0")
			return core.ErrHTTPError, 0
		}
		src = resolved
	}

	lastStatus := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, err := m.attempt(ctx, src, dest, timeout)
		if status > 0 {
			lastStatus = status
		}

		final := attempt == maxAttempts

		switch {
		case err == nil:
			metrics.DownloadAttemptsTotal.WithLabelValues("ok").Inc()
			log.Info("Bundle downloaded", "dest", dest, "attempt", attempt, "status", status)
			logf("DOWNLOAD OK")
			return "", lastStatus

		case status >= http.StatusInternalServerError:
			metrics.DownloadAttemptsTotal.WithLabelValues("http_5xx").Inc()
			log.Warn("Bundle server error", "status", status, "attempt", attempt, "maxAttempts", maxAttempts)
			logf(fmt.Sprintf("DOWNLOAD FAIL code=%s http=%d attempt=%d", core.ErrHTTP5xx, status, attempt))
			if final {
				return core.ErrHTTP5xx, lastStatus
			}

		default:
			outcome, class := classify(status, err)
			metrics.DownloadAttemptsTotal.WithLabelValues(outcome).Inc()
			log.Warn("Bundle download attempt failed", "error", err, "attempt", attempt, "maxAttempts", maxAttempts)
			if status > 0 {
				logf(fmt.Sprintf("DOWNLOAD FAIL error=%s http=%d attempt=%d", class, status, attempt))
			} else {
				logf(fmt.Sprintf("DOWNLOAD FAIL error=%s attempt=%d", class, attempt))
			}
			if final {
				if lastStatus >= http.StatusInternalServerError {
					return core.ErrHTTP5xx, lastStatus
				}
				return core.ErrHTTPError, lastStatus
			}
		}

		if err := sleep(ctx, m.backoff(attempt)); err != nil {
			logf(fmt.Sprintf("DOWNLOAD FAIL error=cancelled attempt=%d", attempt))
			return core.ErrHTTPError, lastStatus
		}
	}

	return core.ErrHTTPError, lastStatus
}

// attempt performs one GET and streams the body to dest. timeout bounds the
// wait for the response and every pause between body reads, not the total
// transfer, so large bundles on slow links still complete.
func (m *Manager) attempt(ctx context.Context, url, dest string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	watchdog := time.AfterFunc(timeout, func() { cancel(errIdleTimeout) })
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &requestError{err}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, causeOf(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return resp.StatusCode, &writeError{err}
	}
	f, err := os.Create(dest)
	if err != nil {
		return resp.StatusCode, &writeError{err}
	}

	body := &idleReader{r: resp.Body, timer: watchdog, timeout: timeout}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return resp.StatusCode, causeOf(ctx, err)
	}
	if err := f.Close(); err != nil {
		return resp.StatusCode, &writeError{err}
	}

	return resp.StatusCode, nil
}

var errIdleTimeout = errors.New("download stalled")

type writeError struct{ err error }

func (e *writeError) Error() string { return "write bundle: " + e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// requestError is a URL the HTTP client cannot even build a request from.
type requestError struct{ err error }

func (e *requestError) Error() string { return "bad bundle url: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// idleReader pushes the watchdog back every time data arrives.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func causeOf(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) {
		return fmt.Errorf("%w: %w", cause, err)
	}
	return err
}

// classify maps a failed attempt to a metrics outcome and a run log class.
func classify(status int, err error) (outcome, class string) {
	var we *writeError
	var re *requestError
	var ne net.Error
	switch {
	case errors.As(err, &we):
		return "transport", "write"
	case errors.As(err, &re):
		return "transport", "request"
	case status >= http.StatusBadRequest:
		return "http_4xx", "http"
	case errors.Is(err, errIdleTimeout), errors.Is(err, context.DeadlineExceeded):
		return "transport", "timeout"
	case errors.As(err, &ne) && ne.Timeout():
		return "transport", "timeout"
	default:
		return "transport", "connection"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
