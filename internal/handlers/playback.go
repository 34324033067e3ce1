package handlers

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
	"github.com/isi-macroscope/acquisition-core/internal/modes"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
)

// PlaybackDeps collects the components the playback command family
// delegates to.
type PlaybackDeps struct {
	Playback        *modes.PlaybackController
	SessionsBaseDir string
}

// RegisterPlayback registers list_sessions, load_session, get_session_data,
// get_playback_frame, and unload_session.
func RegisterPlayback(d *ipc.Dispatcher, deps PlaybackDeps, logger *logging.Logger) {
	register(d, "list_sessions", wrap(logger, "list_sessions", func(raw json.RawMessage) (interface{}, error) {
		entries, err := os.ReadDir(deps.SessionsBaseDir)
		if err != nil {
			if os.IsNotExist(err) {
				return map[string]interface{}{"sessions": []string{}}, nil
			}
			return nil, err
		}

		var sessions []string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			candidate := filepath.Join(deps.SessionsBaseDir, e.Name())
			if _, err := os.Stat(sessionio.MetadataPath(candidate)); err == nil {
				sessions = append(sessions, e.Name())
			}
		}
		return map[string]interface{}{"sessions": sessions}, nil
	}))

	register(d, "load_session", wrap(logger, "load_session", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			SessionPath string `json:"session_path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		sessionDir := p.SessionPath
		if !filepath.IsAbs(sessionDir) {
			sessionDir = filepath.Join(deps.SessionsBaseDir, sessionDir)
		}
		if err := deps.Playback.Activate(sessionDir); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "loaded"}, nil
	}))

	register(d, "get_session_data", wrap(logger, "get_session_data", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			Direction string `json:"direction"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		data, err := deps.Playback.GetSessionData(p.Direction)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"direction":   data.Direction,
			"frame_count": data.FrameCount,
			"width":       data.Width,
			"height":      data.Height,
		}, nil
	}))

	register(d, "get_playback_frame", wrap(logger, "get_playback_frame", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			Direction string `json:"direction"`
			Index     int    `json:"index"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		frame, err := deps.Playback.GetPlaybackFrame(p.Direction, p.Index)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"direction":    p.Direction,
			"index":        p.Index,
			"frame_base64": base64.StdEncoding.EncodeToString(frame),
		}, nil
	}))

	register(d, "unload_session", wrap(logger, "unload_session", func(raw json.RawMessage) (interface{}, error) {
		deps.Playback.Deactivate()
		return map[string]interface{}{"status": "unloaded"}, nil
	}))
}
