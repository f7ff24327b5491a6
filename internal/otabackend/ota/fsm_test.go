package ota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-backend/internal/otabackend/core"
)

func TestFiniteStateMachine_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := NewFiniteStateMachine()
	s := &core.RunState{CurrentVersion: "1.0"}

	require.NoError(t, f.Event(ctx, EventStart, s, "r1", "2.0"))
	assert.Equal(t, core.RunState{
		CurrentVersion: "1.0",
		TargetVersion:  "2.0",
		ActiveRunID:    "r1",
		Phase:          core.PhaseDownload,
		LastEvent:      core.EventStart,
	}, *s)

	require.NoError(t, f.Event(ctx, EventApply, s))
	assert.Equal(t, core.PhaseApply, s.Phase)
	assert.Equal(t, core.EventStart, s.LastEvent)

	require.NoError(t, f.Event(ctx, EventReboot, s))
	assert.Equal(t, core.PhaseReboot, s.Phase)
	assert.Equal(t, core.EventOK, s.LastEvent)

	require.NoError(t, f.Event(ctx, EventCommit, s))
	assert.Equal(t, core.PhaseCommit, s.Phase)

	require.NoError(t, f.Event(ctx, EventFinish, s))
	assert.Equal(t, core.PhaseNone, s.Phase)
	assert.Equal(t, core.EventOK, s.LastEvent)
	assert.Empty(t, s.ActiveRunID)
	assert.Equal(t, StateIdle, f.Current())
}

func TestFiniteStateMachine_Fail(t *testing.T) {
	ctx := context.Background()
	f := NewFiniteStateMachine()
	s := &core.RunState{}

	require.NoError(t, f.Event(ctx, EventStart, s, "r1", "2.0"))
	require.NoError(t, f.Event(ctx, EventFail, s, core.ErrHTTP5xx))

	assert.Equal(t, core.PhaseNone, s.Phase)
	assert.Equal(t, core.EventFail, s.LastEvent)
	require.NotNil(t, s.LastError)
	assert.Equal(t, core.ErrHTTP5xx, *s.LastError)
	assert.Empty(t, s.ActiveRunID)
	assert.Equal(t, "2.0", s.TargetVersion)
}

func TestFiniteStateMachine_RejectsInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	f := NewFiniteStateMachine()
	s := &core.RunState{}

	assert.Error(t, f.Event(ctx, EventApply, s))
	assert.Error(t, f.Event(ctx, EventFail, s, core.ErrHTTPError))

	require.NoError(t, f.Event(ctx, EventStart, s, "r1", "2.0"))
	assert.False(t, f.Can(EventStart))
	assert.Error(t, f.Event(ctx, EventStart, s, "r2", "3.0"))
	assert.Equal(t, "r1", s.ActiveRunID)

	require.NoError(t, f.Event(ctx, EventApply, s))
	require.NoError(t, f.Event(ctx, EventReboot, s))
	assert.False(t, f.Can(EventFail), "REBOOT has no failure exit")
}

func TestFiniteStateMachine_FailWithoutCode(t *testing.T) {
	ctx := context.Background()
	f := NewFiniteStateMachine()
	s := &core.RunState{}

	require.NoError(t, f.Event(ctx, EventStart, s, "r1", "2.0"))
	assert.Error(t, f.Event(ctx, EventFail, s))

	assert.Equal(t, string(core.PhaseDownload), f.Current())
	assert.Equal(t, core.PhaseDownload, s.Phase)
	assert.Nil(t, s.LastError)
	assert.Equal(t, "r1", s.ActiveRunID)
}

func TestPhaseOf(t *testing.T) {
	assert.Equal(t, core.PhaseNone, PhaseOf(StateIdle))
	assert.Equal(t, core.PhaseCommit, PhaseOf("COMMIT"))
}
