package ctstim

import (
	"testing"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) *Controller {
	cm := config.NewConfigManager(nil)
	mgr := stimulus.NewManager(cm)
	return New(mgr)
}

func TestController_InactiveBeforeStart(t *testing.T) {
	c := newTestController(t)
	frame, meta := c.GenerateNextFrame(100)
	assert.Nil(t, frame)
	assert.Nil(t, meta)
}

func TestController_GeneratesFramesWithSameTimestamp(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.StartDirection(config.DirectionLR))

	frame, meta := c.GenerateNextFrame(555)
	require.NotNil(t, frame)
	require.NotNil(t, meta)
	assert.Equal(t, int64(555), meta.TimestampUs)
	assert.Equal(t, 0, meta.FrameIndex)
}

func TestController_StopsAfterTotalFrames(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.StartDirection(config.DirectionLR))

	_, _, total := c.Progress()
	_ = total
	for i := 0; i < 10000; i++ {
		_, meta := c.GenerateNextFrame(int64(i))
		if meta == nil {
			break
		}
	}
	frame, meta := c.GenerateNextFrame(999999)
	assert.Nil(t, frame)
	assert.Nil(t, meta)
}

func TestController_StopDirectionDeactivates(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.StartDirection(config.DirectionTB))
	assert.True(t, c.IsActive())
	c.StopDirection()
	assert.False(t, c.IsActive())

	frame, meta := c.GenerateNextFrame(1)
	assert.Nil(t, frame)
	assert.Nil(t, meta)
}
