package stimulus

import (
	"testing"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() (config.MonitorParams, config.StimulusParams) {
	m := config.MonitorParams{
		DistanceCM: 10, WidthPx: 64, HeightPx: 48, WidthCM: 52, HeightCM: 29,
	}
	s := config.StimulusParams{
		BarWidthDeg: 20, DriftSpeedDegS: 10, CheckerSizeDeg: 25,
		FlickerHz: 6, Contrast: 1.0, NumCycles: 2,
	}
	return m, s
}

func TestGenerateFrameAtIndex_Deterministic(t *testing.T) {
	m, s := testParams()
	g1 := NewGenerator(m, s)
	g2 := NewGenerator(m, s)

	f1, meta1, err := g1.GenerateFrameAtIndex(config.DirectionLR, 3, true)
	require.NoError(t, err)
	f2, meta2, err := g2.GenerateFrameAtIndex(config.DirectionLR, 3, true)
	require.NoError(t, err)

	assert.Equal(t, f1.Pixels, f2.Pixels)
	assert.Equal(t, meta1, meta2)
}

func TestDatasetInfo_RejectsUnknownDirection(t *testing.T) {
	m, s := testParams()
	g := NewGenerator(m, s)
	_, err := g.DatasetInfo("DIAGONAL")
	assert.Error(t, err)
}

func TestBlackFrame_AllZero(t *testing.T) {
	m, s := testParams()
	g := NewGenerator(m, s)
	f := g.BlackFrame()
	for _, p := range f.Pixels {
		assert.Equal(t, uint8(0), p)
	}
}

func TestManager_InvalidatesOnStimulusChange(t *testing.T) {
	cm := config.NewConfigManager(nil)
	mgr := NewManager(cm)

	gen1 := mgr.Generator()
	require.NotNil(t, gen1)

	err := cm.UpdateGroup(config.GroupStimulus, func(c *config.Config) {
		c.Stimulus.BarWidthDeg = 30
	})
	require.NoError(t, err)

	gen2 := mgr.Generator()
	assert.NotSame(t, gen1, gen2)
}
