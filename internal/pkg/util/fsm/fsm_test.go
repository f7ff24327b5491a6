package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fail(context.Context, *fsm.Event) error { return errBoom }

func newMachine(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM("idle", fsm.Events{{Name: "go", Src: []string{"idle"}, Dst: "busy"}}, callbacks)
}

func TestWrapEvent(t *testing.T) {
	m := newMachine(fsm.Callbacks{"enter_busy": WrapEvent(fail)})

	err := m.Event(context.Background(), "go")
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "busy", m.Current())
}

func TestWrapGuard(t *testing.T) {
	m := newMachine(fsm.Callbacks{"before_go": WrapGuard(fail)})

	err := m.Event(context.Background(), "go")
	var canceled fsm.CanceledError
	require.ErrorAs(t, err, &canceled)
	assert.ErrorIs(t, canceled.Err, errBoom)
	assert.Equal(t, "idle", m.Current())
}

func TestWrapGuard_Passes(t *testing.T) {
	m := newMachine(fsm.Callbacks{"before_go": WrapGuard(func(context.Context, *fsm.Event) error { return nil })})

	require.NoError(t, m.Event(context.Background(), "go"))
	assert.Equal(t, "busy", m.Current())
}
