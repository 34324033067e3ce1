package synctrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RejectsLargeDrift(t *testing.T) {
	tr := New()
	tr.Enable()

	accepted := tr.Add(1_000_000, 1_150_000) // 150ms drift
	assert.False(t, accepted)
	assert.Empty(t, tr.Recent(5.0))
}

func TestTracker_AcceptsWithinThreshold(t *testing.T) {
	tr := New()
	tr.Enable()

	accepted := tr.Add(1_000_000, 1_050_000) // 50ms drift
	require.True(t, accepted)
	require.Len(t, tr.Recent(5.0), 1)
}

func TestTracker_DisabledDiscardsAdds(t *testing.T) {
	tr := New()
	accepted := tr.Add(1_000_000, 1_000_000)
	assert.False(t, accepted)
}

func TestTracker_RecentAnchorsOnLatestEntryNotWallClock(t *testing.T) {
	tr := New()
	tr.Enable()

	tr.Add(0, 0)
	tr.Add(1_000_000, 1_000_000)  // 1s later
	tr.Add(10_000_000, 10_000_000) // 10s later than first

	recent := tr.Recent(2.0)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(10_000_000), recent[0].CameraTimestampUs)
}

func TestTracker_StatsForComputesSummary(t *testing.T) {
	tr := New()
	tr.Enable()
	tr.Add(0, 10_000)   // 10ms
	tr.Add(1_000_000, 1_020_000) // 20ms

	stats := tr.StatsFor(5.0)
	require.Equal(t, 2, stats.Count)
	assert.InDelta(t, 15.0, stats.MeanDiffMs, 0.001)
	assert.Equal(t, 10.0, stats.MinDiffMs)
	assert.Equal(t, 20.0, stats.MaxDiffMs)
}

func TestTracker_OverflowDropsOldest(t *testing.T) {
	tr := New()
	tr.Enable()
	for i := 0; i < MaxEntries+10; i++ {
		tr.Add(int64(i)*1000, int64(i)*1000)
	}
	stats := tr.StatsFor(1e9)
	assert.Equal(t, MaxEntries, stats.Count)
}

func TestTracker_ClearResetsEntries(t *testing.T) {
	tr := New()
	tr.Enable()
	tr.Add(0, 0)
	tr.Clear()
	assert.Empty(t, tr.Recent(5.0))
}
