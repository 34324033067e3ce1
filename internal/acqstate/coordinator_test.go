package acqstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_StartsIdle(t *testing.T) {
	c := New()
	assert.True(t, c.IsIdle())
}

func TestCoordinator_RecordingOnlyLeavesToIdle(t *testing.T) {
	c := New()
	require.NoError(t, c.Transition(StateRecording))

	assert.Error(t, c.Transition(StatePreview))
	assert.Error(t, c.Transition(StatePlayback))
	assert.True(t, c.IsRecording())

	assert.NoError(t, c.Transition(StateIdle))
	assert.True(t, c.IsIdle())
}

func TestCoordinator_AllowedTransitionsFromIdle(t *testing.T) {
	for _, next := range []State{StatePreview, StateRecording, StatePlayback} {
		c := New()
		assert.NoError(t, c.Transition(next))
	}
}

func TestCoordinator_PlaybackCannotGoToRecording(t *testing.T) {
	c := New()
	require.NoError(t, c.Transition(StatePlayback))
	assert.Error(t, c.Transition(StateRecording))
}

func TestCoordinator_SameStateIsNoop(t *testing.T) {
	c := New()
	assert.NoError(t, c.Transition(StateIdle))
}
