package shmplane

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlane_WriteFrameRoundTrips(t *testing.T) {
	p, err := New(KindCamera)
	require.NoError(t, err)
	defer p.Close()

	meta, err := p.WriteFrame([]byte{1, 2, 3, 4}, FrameMeta{WidthPx: 2, HeightPx: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, meta.DataSizeBytes)
	assert.NotEmpty(t, meta.FrameID)
	assert.Equal(t, p.Path(), meta.ShmPath)
}

func TestPlane_StimulusRequiresPositiveFrameIndexAndTotal(t *testing.T) {
	p, err := New(KindStimulus)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.WriteFrame([]byte{1}, FrameMeta{FrameIndex: 0, TotalFrames: 0})
	assert.Error(t, err)

	_, err = p.WriteFrame([]byte{1}, FrameMeta{FrameIndex: 0, TotalFrames: 10})
	assert.NoError(t, err)
}

func TestPlane_RecentKeepsBoundedHistory(t *testing.T) {
	p, err := New(KindCamera)
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < registrySize+5; i++ {
		_, err := p.WriteFrame([]byte{byte(i)}, FrameMeta{FrameIndex: i, TotalFrames: 1})
		require.NoError(t, err)
	}
	assert.Len(t, p.Recent(), registrySize)
}

func TestPlane_AnalysisPlaneKeepsNoHistory(t *testing.T) {
	p, err := New(KindAnalysis)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.WriteFrame([]byte{1, 2, 3}, FrameMeta{})
	require.NoError(t, err)
	assert.Empty(t, p.Recent())
}

func TestPlane_RejectsOversizedPayload(t *testing.T) {
	p, err := New(KindAnalysis)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.WriteFrame(make([]byte, AnalysisPlaneSize+1), FrameMeta{})
	assert.Error(t, err)
}
