package bridge

import (
	"sync"

	"github.com/isi-macroscope/acquisition-core/internal/camera"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/orchestrator"
	"github.com/isi-macroscope/acquisition-core/internal/recorder"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
)

// SessionPathHolder carries the session directory start_acquisition
// resolved (operator-supplied or a default timestamped path) across to the
// orchestrator's RecorderFactory, which otherwise has no per-call argument
// to receive it through.
type SessionPathHolder struct {
	mu   sync.Mutex
	path string
}

// Set records the path the next sweep should record into.
func (h *SessionPathHolder) Set(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Current returns the most recently set path.
func (h *SessionPathHolder) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.path
}

// timestampSource reports the driver's resolved timestamp source, valid
// only after Run has captured at least one frame.
type timestampSource interface {
	HardwareTimestamps() bool
}

// sessionRecorder wraps *recorder.Recorder so that Save also detaches it
// from the camera driver, undoing the SetRecorder attach NewRecorderFactory
// performs when the sweep begins.
type sessionRecorder struct {
	*recorder.Recorder
	driver *camera.Driver
}

func (s *sessionRecorder) Save() error {
	err := s.Recorder.Save()
	s.driver.SetRecorder(nil)
	return err
}

// NewRecorderFactory builds an orchestrator.RecorderFactory that, on each
// call, creates a fresh *recorder.Recorder targeting holder's current
// session path, attaches it to driver for the duration of the sweep, and
// detaches it again on Save.
func NewRecorderFactory(driver *camera.Driver, source timestampSource, holder *SessionPathHolder, configManager *config.ConfigManager) orchestrator.RecorderFactory {
	return func() orchestrator.Recorder {
		cfg := configManager.GetConfig()

		cameraSource := "software"
		if source.HardwareTimestamps() {
			cameraSource = "hardware"
		}

		rec := recorder.New(holder.Current(), cfg.Camera.WidthPx, cfg.Camera.HeightPx, 1, sessionio.TimestampInfo{
			CameraTimestampSource:   cameraSource,
			StimulusTimestampSource: "derived_from_camera_timestamp",
			SynchronizationMethod:   "camera_triggered_generation",
		}, cfg)

		wrapped := &sessionRecorder{Recorder: rec, driver: driver}
		driver.SetRecorder(wrapped)
		return wrapped
	}
}
