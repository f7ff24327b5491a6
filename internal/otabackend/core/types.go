package core

// Phase is one stage of an OTA run. PhaseNone means no run is active.
type Phase string

const (
	PhaseNone     Phase = ""
	PhaseDownload Phase = "DOWNLOAD"
	PhaseApply    Phase = "APPLY"
	PhaseReboot   Phase = "REBOOT"
	PhaseCommit   Phase = "COMMIT"
)

// EventKind is the outcome reported for a phase.
type EventKind string

const (
	EventStart EventKind = "START"
	EventOK    EventKind = "OK"
	EventFail  EventKind = "FAIL"
)

// ErrorCode classifies a run failure.
type ErrorCode string

const (
	// ErrHTTP5xx is a download failure caused by the server side. The fleet
	// backend may retry the run.
	ErrHTTP5xx ErrorCode = "HTTP_5XX"

	// ErrHTTPError is any other download failure: 4xx, transport errors,
	// unresolvable bundle URLs or local write errors.
	ErrHTTPError ErrorCode = "HTTP_ERROR"

	ErrInstallFailed  ErrorCode = "INSTALL_FAILED"
	ErrMarkGoodFailed ErrorCode = "MARK_GOOD_FAILED"
)

// Retryable reports whether the failure is worth retrying with a new run.
func (c ErrorCode) Retryable() bool {
	return c == ErrHTTP5xx
}

// RunState is the orchestrator's view of the current or last run.
type RunState struct {
	CurrentVersion string
	TargetVersion  string
	ActiveRunID    string
	Phase          Phase
	LastEvent      EventKind
	LastError      *ErrorCode
}

// Idle reports whether a new run may start.
func (s RunState) Idle() bool {
	return s.Phase == PhaseNone
}
