// Package fsm adapts error returning actions to looplab/fsm callbacks.
package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// Action is a state machine side effect that can fail.
type Action func(ctx context.Context, event *fsm.Event) error

// WrapEvent turns an action into an enter or after callback. A failure is
// returned from FSM.Event but the transition stands.
func WrapEvent(fn Action) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// WrapGuard turns an action into a before callback. A failure cancels the
// transition and is returned from FSM.Event.
func WrapGuard(fn Action) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Cancel(err)
		}
	}
}
