package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/isi-macroscope/acquisition-core/internal/camera"
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
	"github.com/isi-macroscope/acquisition-core/internal/shmplane"
)

// LatestCameraFrameSource exposes the most recently published camera frame
// payload, backed by the camera shared-memory plane.
type LatestCameraFrameSource interface {
	ReadLatest() (payload []byte, meta shmplane.FrameMeta, ok bool)
}

// SystemDeps collects the components capture_anatomical and ping delegate
// to.
type SystemDeps struct {
	Driver      *camera.Driver
	LatestFrame LatestCameraFrameSource
	HealthPulse *ipc.HealthPulse
}

// RegisterSystem registers capture_anatomical and ping.
func RegisterSystem(d *ipc.Dispatcher, deps SystemDeps, logger *logging.Logger) {
	register(d, "capture_anatomical", wrap(logger, "capture_anatomical", func(raw json.RawMessage) (interface{}, error) {
		rec := deps.Driver.ActiveRecorder()
		if rec == nil {
			return nil, fmt.Errorf("handlers: no active recording session to capture an anatomical image into")
		}
		frame, _, ok := deps.LatestFrame.ReadLatest()
		if !ok {
			return nil, fmt.Errorf("handlers: no camera frame has been captured yet")
		}
		rec.SetAnatomical(frame)
		return map[string]interface{}{"status": "captured"}, nil
	}))

	register(d, "ping", wrap(logger, "ping", func(raw json.RawMessage) (interface{}, error) {
		if deps.HealthPulse != nil {
			deps.HealthPulse.PublishNow()
		}
		return "pong", nil
	}))
}
