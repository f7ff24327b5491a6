package ota

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"k8s.io/utils/ptr"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
	"github.com/autopeer-io/ota-backend/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/ota-backend/internal/pkg/util/fsm"
)

// StateIdle is the FSM state for core.PhaseNone.
const StateIdle = "IDLE"

const (
	// EventStart claims the orchestrator for a new run.
	EventStart = "event_start"
	// EventApply follows a successful download.
	EventApply = "event_apply"
	// EventReboot follows a successful install.
	EventReboot = "event_reboot"
	// EventCommit runs the post-install commit in this boot.
	EventCommit = "event_commit"
	// EventFinish ends a committed run.
	EventFinish = "event_finish"
	// EventFail ends a run with an error code.
	EventFail = "event_fail"
)

var states = []string{
	StateIdle,
	string(core.PhaseDownload),
	string(core.PhaseApply),
	string(core.PhaseReboot),
	string(core.PhaseCommit),
}

// FiniteStateMachine validates phase transitions and applies their side
// effects to the RunState passed as the first event argument. It is not
// safe for concurrent use; the Manager serializes access.
type FiniteStateMachine struct {
	*fsm.FSM
}

func NewFiniteStateMachine() *FiniteStateMachine {
	f := &FiniteStateMachine{}

	events := fsm.Events{
		{Name: EventStart, Src: []string{StateIdle}, Dst: string(core.PhaseDownload)},
		{Name: EventApply, Src: []string{string(core.PhaseDownload)}, Dst: string(core.PhaseApply)},
		{Name: EventReboot, Src: []string{string(core.PhaseApply)}, Dst: string(core.PhaseReboot)},
		{Name: EventCommit, Src: []string{string(core.PhaseReboot)}, Dst: string(core.PhaseCommit)},
		{Name: EventFinish, Src: []string{string(core.PhaseCommit)}, Dst: StateIdle},

		// COMMIT only fails when mark-good errors are enforced.
		{Name: EventFail, Src: []string{string(core.PhaseDownload), string(core.PhaseApply), string(core.PhaseCommit)}, Dst: StateIdle},
	}

	callbacks := fsm.Callbacks{
		"before_" + EventFail: fsmutil.WrapGuard(f.ActionRecordFailure),

		"enter_" + string(core.PhaseDownload): fsmutil.WrapEvent(f.ActionEnterDownload),
		"enter_" + string(core.PhaseApply):    fsmutil.WrapEvent(f.ActionSetEvent(core.EventStart)),
		"enter_" + string(core.PhaseReboot):   fsmutil.WrapEvent(f.ActionSetEvent(core.EventOK)),
		"enter_" + string(core.PhaseCommit):   fsmutil.WrapEvent(f.ActionSetEvent(core.EventStart)),
		"enter_" + StateIdle:                  fsmutil.WrapEvent(f.ActionEnterIdle),

		"enter_state": fsmutil.WrapEvent(f.ActionSyncPhase),
	}

	f.FSM = fsm.NewFSM(StateIdle, events, callbacks)
	metrics.SetPhase(StateIdle, states...)
	return f
}

func runState(e *fsm.Event) (*core.RunState, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("%s: missing run state", e.Event)
	}
	s, ok := e.Args[0].(*core.RunState)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected argument %T", e.Event, e.Args[0])
	}
	return s, nil
}

// ActionEnterDownload resets the run fields for a new run.
// Args: state, runID, targetVersion.
func (f *FiniteStateMachine) ActionEnterDownload(ctx context.Context, e *fsm.Event) error {
	s, err := runState(e)
	if err != nil {
		return err
	}
	if len(e.Args) < 3 {
		return fmt.Errorf("%s: expected run id and target version", e.Event)
	}
	s.ActiveRunID, _ = e.Args[1].(string)
	s.TargetVersion, _ = e.Args[2].(string)
	s.LastError = nil
	s.LastEvent = core.EventStart
	return nil
}

// ActionSetEvent records the event reported on entering a state.
func (f *FiniteStateMachine) ActionSetEvent(kind core.EventKind) func(context.Context, *fsm.Event) error {
	return func(ctx context.Context, e *fsm.Event) error {
		s, err := runState(e)
		if err != nil {
			return err
		}
		s.LastEvent = kind
		return nil
	}
}

// ActionRecordFailure stores the error code. Args: state, code.
func (f *FiniteStateMachine) ActionRecordFailure(ctx context.Context, e *fsm.Event) error {
	s, err := runState(e)
	if err != nil {
		return err
	}
	if len(e.Args) < 2 {
		return fmt.Errorf("%s: missing error code", e.Event)
	}
	code, ok := e.Args[1].(core.ErrorCode)
	if !ok {
		return fmt.Errorf("%s: unexpected error code %T", e.Event, e.Args[1])
	}
	s.LastError = ptr.To(code)
	s.LastEvent = core.EventFail
	return nil
}

// ActionEnterIdle releases the run.
func (f *FiniteStateMachine) ActionEnterIdle(ctx context.Context, e *fsm.Event) error {
	s, err := runState(e)
	if err != nil {
		return err
	}
	if e.Event == EventFinish {
		s.LastEvent = core.EventOK
	}
	s.ActiveRunID = ""
	return nil
}

// ActionSyncPhase mirrors the FSM state into the RunState and metrics.
func (f *FiniteStateMachine) ActionSyncPhase(ctx context.Context, e *fsm.Event) error {
	s, err := runState(e)
	if err != nil {
		return err
	}
	s.Phase = PhaseOf(e.Dst)
	metrics.SetPhase(e.Dst, states...)
	return nil
}

// PhaseOf maps an FSM state to a phase.
func PhaseOf(state string) core.Phase {
	if state == StateIdle {
		return core.PhaseNone
	}
	return core.Phase(state)
}
