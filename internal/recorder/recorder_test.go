package recorder

import (
	"path/filepath"
	"testing"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ctstim"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_SaveWritesConsistentSession(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	r := New(dir, 4, 4, 1, sessionio.TimestampInfo{CameraTimestampSource: "software"}, cfg)

	r.Start(config.DirectionLR)
	require.NoError(t, r.RecordCameraFrame(100, []byte{1, 2, 3, 4}))
	require.NoError(t, r.RecordStimulusEvent(100, &ctstim.FrameMeta{
		Direction: config.DirectionLR, FrameIndex: 0, Angle: 5.0, TimestampUs: 100,
	}))
	require.NoError(t, r.RecordCameraFrame(200, []byte{5, 6, 7, 8}))
	require.NoError(t, r.RecordStimulusEvent(200, &ctstim.FrameMeta{
		Direction: config.DirectionLR, FrameIndex: 1, Angle: 6.0, TimestampUs: 200,
	}))
	r.Stop()

	require.NoError(t, r.Save())

	meta, err := sessionio.ReadMetadata(sessionio.MetadataPath(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"LR"}, meta.Directions)

	cam, err := sessionio.ReadCameraFile(filepath.Join(dir, "LR_camera.h5"))
	require.NoError(t, err)
	assert.Len(t, cam.Frames, 2)
	assert.Len(t, cam.TimestampsUs, 2)
}

func TestRecorder_RepeatedStartAccumulatesAcrossCycles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	r := New(dir, 4, 4, 1, sessionio.TimestampInfo{}, cfg)

	r.Start(config.DirectionLR)
	require.NoError(t, r.RecordCameraFrame(100, []byte{1, 2, 3, 4}))
	r.Stop()

	// Second repeat cycle for the same direction: must append, not replace.
	r.Start(config.DirectionLR)
	require.NoError(t, r.RecordCameraFrame(200, []byte{5, 6, 7, 8}))
	r.Stop()

	require.NoError(t, r.Save())

	cam, err := sessionio.ReadCameraFile(filepath.Join(dir, "LR_camera.h5"))
	require.NoError(t, err)
	assert.Len(t, cam.Frames, 2, "both repeat cycles' frames must survive")
	assert.Equal(t, []int64{100, 200}, cam.TimestampsUs)
}

func TestRecorder_SaveRejectsEmptySession(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	r := New(dir, 4, 4, 1, sessionio.TimestampInfo{}, cfg)
	assert.Error(t, r.Save())
}

func TestRecorder_AppendAfterStopFails(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	r := New(dir, 4, 4, 1, sessionio.TimestampInfo{}, cfg)

	r.Start(config.DirectionTB)
	r.Stop()
	assert.Error(t, r.RecordCameraFrame(1, []byte{1}))
}
