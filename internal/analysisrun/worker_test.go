package analysisrun

import (
	"math"
	"sync"
	"testing"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	topics []string
}

func (f *fakePublisher) Publish(topic string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
}

func (f *fakePublisher) has(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.topics {
		if t == topic {
			return true
		}
	}
	return false
}

func writeSyntheticPairSession(t *testing.T, dir string, width, height, n int) {
	t.Helper()
	writeDir := func(direction string, phase func(x, y int) float64) {
		l := sessionio.Layout{Dir: dir, Direction: direction}
		frames := make([][]byte, n)
		timestamps := make([]int64, n)
		angles := make([]float64, n)
		events := make([]sessionio.Event, n)
		for tIdx := 0; tIdx < n; tIdx++ {
			frame := make([]byte, width*height)
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					theta := 2*math.Pi*float64(tIdx)/float64(n) + phase(x, y)
					frame[y*width+x] = uint8(127 + 127*math.Cos(theta))
				}
			}
			ts := int64(tIdx * 1000)
			frames[tIdx] = frame
			timestamps[tIdx] = ts
			angles[tIdx] = 0
			events[tIdx] = sessionio.Event{TimestampUs: ts, AngleDegrees: 0}
		}
		require.NoError(t, sessionio.WriteCameraFile(l.CameraPath(), sessionio.CameraData{
			Height: height, Width: width, Channels: 1,
			Frames: frames, TimestampsUs: timestamps,
		}))
		require.NoError(t, sessionio.WriteStimulusFile(l.StimulusPath(), sessionio.StimulusData{AnglesDeg: angles}))
		require.NoError(t, sessionio.WriteEvents(l.EventsPath(), events))
	}

	writeDir("LR", func(x, y int) float64 { return float64(x) * 0.2 })
	writeDir("RL", func(x, y int) float64 { return -float64(x) * 0.2 })
	writeDir("TB", func(x, y int) float64 { return float64(y) * 0.2 })
	writeDir("BT", func(x, y int) float64 { return -float64(y) * 0.2 })

	require.NoError(t, sessionio.WriteMetadata(sessionio.MetadataPath(dir), sessionio.Metadata{
		SessionName: "synthetic",
		Directions:  []string{"LR", "RL", "TB", "BT"},
	}))
}

func TestWorker_RunsFullPipelineAndPublishesLayers(t *testing.T) {
	dir := t.TempDir()
	writeSyntheticPairSession(t, dir, 4, 4, 40)

	pub := &fakePublisher{}
	w := New(pub, nil)

	camera := config.CameraParams{SelectedCamera: "cam0", WidthPx: 4, HeightPx: 4, FPS: 40}
	stim := config.StimulusParams{NumCycles: 1, Directions: config.AllDirections}
	monitor := config.MonitorParams{DistanceCM: 20, WidthPx: 4, HeightPx: 4, WidthCM: 30, HeightCM: 30}
	params := config.AnalysisParams{SmoothingSigma: 0, AreaMinSize: 1, GradientWindowSize: 1, HemodynamicDelaySec: 0}

	err := w.Start(dir, camera, stim, monitor, params)
	require.NoError(t, err)

	assert.True(t, pub.has("analysis_started"))
	assert.True(t, pub.has("analysis_progress"))
	assert.True(t, pub.has("analysis_layer_ready"))
	assert.True(t, pub.has("analysis_complete"))
	assert.False(t, pub.has("analysis_error"))

	summary, ok := w.LastResultSummary()
	require.True(t, ok)
	assert.Equal(t, dir, summary.SessionPath)
	assert.Contains(t, summary.PrimaryLayers, "azimuth")
}

func TestWorker_RejectsConcurrentStart(t *testing.T) {
	dir := t.TempDir()
	writeSyntheticPairSession(t, dir, 2, 2, 8)

	pub := &fakePublisher{}
	w := New(pub, nil)
	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	camera := config.CameraParams{SelectedCamera: "cam0", WidthPx: 2, HeightPx: 2, FPS: 8}
	err := w.Start(dir, camera, config.StimulusParams{}, config.MonitorParams{}, config.AnalysisParams{})
	assert.Error(t, err)
}
