package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isi-macroscope/acquisition-core/internal/acqstate"
	"github.com/isi-macroscope/acquisition-core/internal/bridge"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/modes"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
)

type fakeRunner struct{ running bool }

func (r *fakeRunner) IsRunning() bool  { return r.running }
func (r *fakeRunner) StopAcquisition() {}
func (r *fakeRunner) Start(ctx context.Context, camera config.CameraParams, acq config.AcquisitionParams, stim config.StimulusParams) error {
	return nil
}

// sendAndDecode runs register against a fresh Dispatcher, feeds it a
// single request line, and decodes the single resulting response envelope.
func sendAndDecode(t *testing.T, register func(d *ipc.Dispatcher), request string) ipc.Envelope {
	t.Helper()
	var out bytes.Buffer
	d := ipc.NewDispatcher(strings.NewReader(request+"\n"), &out, nil)
	register(d)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	var env ipc.Envelope
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &env))
	return env
}

func TestAcquisition_GetStatusReportsIdleAndNotRunning(t *testing.T) {
	env := sendAndDecode(t, func(d *ipc.Dispatcher) {
		RegisterAcquisition(d, AcquisitionDeps{
			ConfigManager: config.NewConfigManager(nil),
			State:         acqstate.New(),
			Record:        modes.NewRecordController(acqstate.New(), &fakeRunner{}),
			Playback:      modes.NewPlaybackController(acqstate.New()),
			Runner:        &fakeRunner{},
			SessionPath:   &bridge.SessionPathHolder{},
		}, nil)
	}, `{"id":"1","command":"get_acquisition_status"}`)

	assert.True(t, env.Success)
	m, ok := env.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, string(acqstate.StateIdle), m["mode"])
	assert.Equal(t, false, m["running"])
}

func TestSystem_PingReturnsPong(t *testing.T) {
	env := sendAndDecode(t, func(d *ipc.Dispatcher) {
		RegisterSystem(d, SystemDeps{}, nil)
	}, `{"id":"2","command":"ping"}`)

	assert.True(t, env.Success)
	assert.Equal(t, "pong", env.Result)
}

func TestPlayback_ListSessionsFindsDirectoriesWithMetadata(t *testing.T) {
	base := t.TempDir()
	sessionDir := base + "/session1"
	require.NoError(t, os.MkdirAll(sessionDir, 0755))
	require.NoError(t, sessionio.WriteMetadata(sessionio.MetadataPath(sessionDir), sessionio.Metadata{
		SessionName: "session1", Directions: []string{"LR"},
	}))

	env := sendAndDecode(t, func(d *ipc.Dispatcher) {
		RegisterPlayback(d, PlaybackDeps{
			Playback:        modes.NewPlaybackController(acqstate.New()),
			SessionsBaseDir: base,
		}, nil)
	}, `{"id":"3","command":"list_sessions"}`)

	assert.True(t, env.Success)
	m, ok := env.Result.(map[string]interface{})
	require.True(t, ok)
	sessions, ok := m["sessions"].([]interface{})
	require.True(t, ok)
	require.Len(t, sessions, 1)
	assert.Equal(t, "session1", sessions[0])
}
