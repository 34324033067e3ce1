package sessionio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadCameraFile_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LR_camera.h5")

	data := CameraData{
		Height: 2, Width: 2, Channels: 1,
		Frames:       [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}},
		TimestampsUs: []int64{100, 200},
	}
	require.NoError(t, WriteCameraFile(path, data))

	got, err := ReadCameraFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteCameraFile_RejectsMismatchedLengths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "LR_camera.h5")

	data := CameraData{Frames: [][]byte{{1}}, TimestampsUs: []int64{1, 2}}
	assert.Error(t, WriteCameraFile(path, data))
}

func TestValidateSession_DetectsMissingFile(t *testing.T) {
	dir := t.TempDir()
	meta := Metadata{SessionName: "s1", Directions: []string{"LR"}}
	require.NoError(t, WriteMetadata(MetadataPath(dir), meta))

	_, err := ValidateSession(dir)
	assert.Error(t, err)
}

func TestValidateSession_PassesForConsistentDirection(t *testing.T) {
	dir := t.TempDir()
	l := Layout{Dir: dir, Direction: "LR"}

	require.NoError(t, WriteCameraFile(l.CameraPath(), CameraData{
		Frames: [][]byte{{1}, {2}}, TimestampsUs: []int64{10, 20},
	}))
	require.NoError(t, WriteStimulusFile(l.StimulusPath(), StimulusData{AnglesDeg: []float64{1, 2}}))
	require.NoError(t, WriteEvents(l.EventsPath(), []Event{
		{TimestampUs: 10, FrameIndex: 0}, {TimestampUs: 20, FrameIndex: 1},
	}))

	meta := Metadata{SessionName: "s1", Directions: []string{"LR"}}
	require.NoError(t, WriteMetadata(MetadataPath(dir), meta))

	got, err := ValidateSession(dir)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionName)
}
