package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/acqstate"
	"github.com/isi-macroscope/acquisition-core/internal/bridge"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
	"github.com/isi-macroscope/acquisition-core/internal/modes"
)

// AcquisitionRunner is the subset of *orchestrator.Orchestrator the
// acquisition handlers drive.
type AcquisitionRunner interface {
	IsRunning() bool
	StopAcquisition()
}

// AcquisitionDeps collects the components start_acquisition and its
// siblings delegate to.
type AcquisitionDeps struct {
	ConfigManager   *config.ConfigManager
	State           *acqstate.Coordinator
	Record          *modes.RecordController
	Preview         *modes.PreviewController
	Playback        *modes.PlaybackController
	Runner          AcquisitionRunner
	SessionPath     *bridge.SessionPathHolder
	SessionsBaseDir string
}

// RegisterAcquisition registers start_acquisition, stop_acquisition,
// get_acquisition_status, and set_acquisition_mode.
func RegisterAcquisition(d *ipc.Dispatcher, deps AcquisitionDeps, logger *logging.Logger) {
	logger = ensureLogger(logger)
	register(d, "start_acquisition", wrap(logger, "start_acquisition", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			SessionPath string                    `json:"session_path"`
			Camera      *config.CameraParams      `json:"camera"`
			Acquisition *config.AcquisitionParams `json:"acquisition"`
			Stimulus    *config.StimulusParams    `json:"stimulus"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		cfg := deps.ConfigManager.GetConfig()
		camera := cfg.Camera
		if p.Camera != nil {
			camera = *p.Camera
		}
		acq := cfg.Acquisition
		if p.Acquisition != nil {
			acq = *p.Acquisition
		}
		stim := cfg.Stimulus
		if p.Stimulus != nil {
			stim = *p.Stimulus
		}

		if err := camera.ValidateForRecording(); err != nil {
			return nil, err
		}
		if err := acq.Validate(); err != nil {
			return nil, err
		}
		if deps.Runner.IsRunning() {
			return nil, fmt.Errorf("handlers: acquisition already running")
		}

		sessionPath := p.SessionPath
		if sessionPath == "" {
			sessionPath = filepath.Join(deps.SessionsBaseDir, fmt.Sprintf("session_%d", time.Now().Unix()))
		}
		deps.SessionPath.Set(sessionPath)

		// The sweep itself runs for the whole acquisition (minutes); it is
		// launched on its own goroutine so the command dispatch loop stays
		// free to serve stop_acquisition and get_acquisition_status.
		go func() {
			if err := deps.Record.Activate(context.Background(), camera, acq, stim); err != nil {
				logger.WithError(err).Error("acquisition run failed")
			}
		}()
		return map[string]interface{}{"status": "started"}, nil
	}))

	register(d, "stop_acquisition", wrap(logger, "stop_acquisition", func(raw json.RawMessage) (interface{}, error) {
		deps.Record.Deactivate()
		return map[string]interface{}{"status": "stop_requested"}, nil
	}))

	register(d, "get_acquisition_status", wrap(logger, "get_acquisition_status", func(raw json.RawMessage) (interface{}, error) {
		return map[string]interface{}{
			"mode":    string(deps.State.Current()),
			"running": deps.Runner.IsRunning(),
		}, nil
	}))

	register(d, "set_acquisition_mode", wrap(logger, "set_acquisition_mode", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			Mode        string `json:"mode"`
			Direction   string `json:"direction"`
			FrameIndex  int    `json:"frame_index"`
			ShowMask    bool   `json:"show_mask"`
			SessionPath string `json:"session_path"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}

		switch p.Mode {
		case "preview":
			meta, err := deps.Preview.Activate(config.Direction(p.Direction), p.FrameIndex, p.ShowMask)
			if err != nil {
				return nil, err
			}
			return meta, nil
		case "playback":
			if p.SessionPath == "" {
				return nil, fmt.Errorf("handlers: set_acquisition_mode playback requires session_path")
			}
			if err := deps.Playback.Activate(p.SessionPath); err != nil {
				return nil, err
			}
			return map[string]interface{}{"mode": "playback"}, nil
		case "idle":
			switch deps.State.Current() {
			case acqstate.StatePlayback:
				deps.Playback.Deactivate()
			default:
				if err := deps.State.Transition(acqstate.StateIdle); err != nil {
					return nil, err
				}
			}
			return map[string]interface{}{"mode": "idle"}, nil
		default:
			return nil, fmt.Errorf("handlers: unknown acquisition mode %q", p.Mode)
		}
	}))
}
