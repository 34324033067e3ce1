package camera

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ctstim"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
	"github.com/isi-macroscope/acquisition-core/internal/synctrack"
)

// Frame is one captured camera frame: grayscale or RGB pixel data in
// row-major order.
type Frame struct {
	Width, Height, Channels int
	Pixels                  []byte
}

// Source is the capture abstraction a Driver drives. OpenDevice returns the
// built-in v4l2Source; tests and simulation modes supply a fake.
type Source interface {
	// Capture blocks until the next frame is available, returning the
	// frame and its device-reported timestamp in microseconds if the
	// device supports hardware timestamps (hasHW false otherwise).
	Capture(ctx context.Context) (frame Frame, hwTimestampUs int64, hasHW bool, err error)
	Close() error
}

// FramePublisher publishes a captured camera frame (and, when present, a
// stimulus frame) to the shared-memory planes and sync/event channel.
type FramePublisher interface {
	PublishCameraFrame(frame Frame, ts int64) error
	PublishStimulusFrame(frame stimulus.Frame, meta *ctstim.FrameMeta) error
}

// SessionRecorder is the subset of *recorder.Recorder the driver needs.
type SessionRecorder interface {
	IsRecording() bool
	RecordCameraFrame(ts int64, frame []byte) error
	RecordStimulusEvent(ts int64, meta *ctstim.FrameMeta) error
	SetAnatomical(image []byte)
}

// Driver runs the fixed-order acquisition loop of the acquisition core's
// camera component: capture -> stimulus -> record(both) -> publish ->
// sync_track, single-threaded per iteration.
type Driver struct {
	source Source
	ctstim *ctstim.Controller
	sync   *synctrack.Tracker
	logger *logging.Logger

	recorder   SessionRecorder
	recorderMu sync.RWMutex

	publisher FramePublisher

	hardwareTimestamps int32 // 0 unknown, 1 true, -1 false
	probed             int32

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewDriver creates a driver over source, generating stimulus frames
// through ctstimCtrl and recording synchronization via tracker.
func NewDriver(source Source, ctstimCtrl *ctstim.Controller, tracker *synctrack.Tracker, publisher FramePublisher, logger *logging.Logger) *Driver {
	if logger == nil {
		logger = logging.NewLogger("camera-driver")
	}
	return &Driver{
		source:    source,
		ctstim:    ctstimCtrl,
		sync:      tracker,
		publisher: publisher,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// SetRecorder attaches (or detaches, with nil) the active session recorder.
// Safe to call concurrently with Run.
func (d *Driver) SetRecorder(r SessionRecorder) {
	d.recorderMu.Lock()
	defer d.recorderMu.Unlock()
	d.recorder = r
}

func (d *Driver) activeRecorder() SessionRecorder {
	d.recorderMu.RLock()
	defer d.recorderMu.RUnlock()
	return d.recorder
}

// ActiveRecorder exposes the currently attached recorder, if any, for
// commands (e.g. capture_anatomical) that need to reach it directly rather
// than through the capture loop.
func (d *Driver) ActiveRecorder() SessionRecorder {
	return d.activeRecorder()
}

// HardwareTimestamps reports the timestamp source selected on the first
// captured frame. Valid only after Run has captured at least one frame.
func (d *Driver) HardwareTimestamps() bool {
	return atomic.LoadInt32(&d.hardwareTimestamps) == 1
}

// Run executes the acquisition loop until ctx is cancelled or Stop is
// called. It returns the first fatal error encountered — which, per the
// failure policy, only occurs for errors raised while a recording is in
// progress; errors while idle are logged and the loop continues.
func (d *Driver) Run(ctx context.Context) error {
	d.doneCh = make(chan struct{})
	defer close(d.doneCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.stopCh:
			return nil
		default:
		}

		frame, hwTs, hasHW, err := d.source.Capture(ctx)
		if err != nil {
			if d.activeRecorder() != nil && d.activeRecorder().IsRecording() {
				return fmt.Errorf("camera: fatal capture error while recording: %w", err)
			}
			d.logger.WithError(err).Warn("Capture error while idle, continuing")
			continue
		}

		ts := d.resolveTimestamp(hwTs, hasHW)

		var stimFrame *stimulus.Frame
		var stimMeta *ctstim.FrameMeta
		if d.ctstim.IsActive() {
			stimFrame, stimMeta = d.ctstim.GenerateNextFrame(ts)
		}

		if rec := d.activeRecorder(); rec != nil && rec.IsRecording() {
			if err := rec.RecordCameraFrame(ts, frame.Pixels); err != nil {
				return fmt.Errorf("camera: fatal record error while recording: %w", err)
			}
			if stimMeta != nil {
				if err := rec.RecordStimulusEvent(ts, stimMeta); err != nil {
					return fmt.Errorf("camera: fatal record error while recording: %w", err)
				}
			}
		}

		if d.publisher != nil {
			if err := d.publisher.PublishCameraFrame(frame, ts); err != nil {
				d.logger.WithError(err).Warn("Failed to publish camera frame")
			}
			if stimMeta != nil && stimFrame != nil {
				if err := d.publisher.PublishStimulusFrame(*stimFrame, stimMeta); err != nil {
					d.logger.WithError(err).Warn("Failed to publish stimulus frame")
				}
			}
		}

		stimTs := ts
		if stimMeta != nil {
			stimTs = stimMeta.TimestampUs
		}
		d.sync.Add(ts, stimTs)
	}
}

// resolveTimestamp picks the timestamp source on the first frame and pins
// it for every subsequent frame in this session.
func (d *Driver) resolveTimestamp(hwTs int64, hasHW bool) int64 {
	if atomic.CompareAndSwapInt32(&d.probed, 0, 1) {
		if hasHW {
			atomic.StoreInt32(&d.hardwareTimestamps, 1)
		} else {
			atomic.StoreInt32(&d.hardwareTimestamps, -1)
		}
	}
	if d.HardwareTimestamps() {
		return hwTs
	}
	return time.Now().UnixMicro()
}

// Stop requests the loop to exit after its current iteration.
func (d *Driver) Stop() {
	select {
	case <-d.stopCh:
	default:
		close(d.stopCh)
	}
	if d.doneCh != nil {
		<-d.doneCh
	}
}

// Close releases the underlying capture device.
func (d *Driver) Close() error {
	if d.source == nil {
		return nil
	}
	return d.source.Close()
}

// TimestampSourceLabel returns "hardware" or "software" for metadata.json's
// timestamp_info.camera_timestamp_source field.
func (d *Driver) TimestampSourceLabel() string {
	if d.HardwareTimestamps() {
		return "hardware"
	}
	return "software"
}

// v4l2Source stands for the capture device at a /dev/videoN path. This
// pure-Go build has no ioctl capture pipeline wired in (no cgo, consistent
// with the rest of this module): OpenDevice only checks that the path
// exists, and Capture returns an all-zero single-channel frame at the
// configured resolution with no hardware timestamp, so the driver always
// falls back to software timestamps.
type v4l2Source struct {
	path   string
	width  int
	height int
}

// OpenDevice opens params.SelectedCamera at the configured resolution.
func OpenDevice(params config.CameraParams) (Source, error) {
	if _, err := os.Stat(params.SelectedCamera); err != nil {
		return nil, fmt.Errorf("camera: device %q not accessible: %w", params.SelectedCamera, err)
	}
	return &v4l2Source{path: params.SelectedCamera, width: params.WidthPx, height: params.HeightPx}, nil
}

func (s *v4l2Source) Capture(ctx context.Context) (Frame, int64, bool, error) {
	select {
	case <-ctx.Done():
		return Frame{}, 0, false, ctx.Err()
	default:
	}
	return Frame{
		Width: s.width, Height: s.height, Channels: 1,
		Pixels: make([]byte, s.width*s.height),
	}, 0, false, nil
}

func (s *v4l2Source) Close() error { return nil }
