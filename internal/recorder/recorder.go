// Package recorder implements the session recorder: a scoped resource
// created for one recording session, buffering per-direction frames,
// timestamps, and stimulus events in memory, with a guaranteed flush of
// whatever was captured if the caller stops it.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ctstim"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
)

type directionBuffer struct {
	frames     [][]byte
	timestamps []int64
	events     []sessionio.Event
	angles     []float64
	stopped    bool
}

// Recorder buffers one recording session's data and flushes it to a
// session directory on Save.
type Recorder struct {
	mu         sync.Mutex
	sessionDir string
	width      int
	height     int
	channels   int
	timestampInfo sessionio.TimestampInfo
	acquisition   config.AcquisitionParams
	stimulusCfg   config.StimulusParams
	monitorCfg    config.MonitorParams
	cameraCfg     config.CameraParams

	anatomical []byte
	buffers    map[config.Direction]*directionBuffer
	active     config.Direction
	recording  bool
}

// New creates a Recorder targeting sessionDir, which is created if it does
// not already exist.
func New(sessionDir string, width, height, channels int, tsInfo sessionio.TimestampInfo, cfg *config.Config) *Recorder {
	return &Recorder{
		sessionDir:    sessionDir,
		width:         width,
		height:        height,
		channels:      channels,
		timestampInfo: tsInfo,
		acquisition:   cfg.Acquisition,
		stimulusCfg:   cfg.Stimulus,
		monitorCfg:    cfg.Monitor,
		cameraCfg:     cfg.Camera,
		buffers:       make(map[config.Direction]*directionBuffer),
	}
}

// Start marks dir active and accepting appends. Repeated calls for the same
// direction (one per acquisition repeat cycle) append to that direction's
// existing buffer rather than discarding previously recorded cycles.
func (r *Recorder) Start(dir config.Direction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[dir]
	if !ok {
		buf = &directionBuffer{}
		r.buffers[dir] = buf
	}
	buf.stopped = false
	r.active = dir
	r.recording = true
}

// IsRecording reports whether a direction buffer is currently accepting
// appends.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// RecordCameraFrame appends a camera frame and its timestamp to the active
// direction's buffer.
func (r *Recorder) RecordCameraFrame(ts int64, frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[r.active]
	if !ok || buf.stopped {
		return fmt.Errorf("recorder: no active direction buffer")
	}
	buf.frames = append(buf.frames, append([]byte(nil), frame...))
	buf.timestamps = append(buf.timestamps, ts)
	return nil
}

// RecordStimulusEvent appends a stimulus event to the active direction's
// buffer under the same timestamp as its triggering camera frame.
func (r *Recorder) RecordStimulusEvent(ts int64, meta *ctstim.FrameMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[r.active]
	if !ok || buf.stopped {
		return fmt.Errorf("recorder: no active direction buffer")
	}
	buf.angles = append(buf.angles, meta.Angle)
	buf.events = append(buf.events, sessionio.Event{
		TimestampUs:  ts,
		FrameID:      fmt.Sprintf("%s-%d", meta.Direction, meta.FrameIndex),
		FrameIndex:   meta.FrameIndex,
		Direction:    string(meta.Direction),
		AngleDegrees: meta.Angle,
	})
	return nil
}

// SetAnatomical keeps a copy of the anatomical reference image, written on
// Save.
func (r *Recorder) SetAnatomical(image []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anatomical = append([]byte(nil), image...)
}

// Stop finalizes the active direction: no further appends are accepted for
// it.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if buf, ok := r.buffers[r.active]; ok {
		buf.stopped = true
	}
	r.recording = false
}

// Save writes the session directory per the layout sessionio.Layout
// describes. Camera arrays are gzip-compressed (handled inside
// sessionio.WriteCameraFile).
//
// Invariants enforced before writing: len(frames)==len(timestamps) per
// direction, at least one direction has >=1 frame for a non-empty session,
// and metadata.directions lists exactly the directions with data.
func (r *Recorder) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.sessionDir, 0755); err != nil {
		return fmt.Errorf("recorder: creating session directory: %w", err)
	}

	var directions []string
	shapes := make(map[string]sessionio.DirectionShape)
	totalFrames := 0
	for dir, buf := range r.buffers {
		if len(buf.frames) == 0 {
			continue
		}
		if len(buf.frames) != len(buf.timestamps) {
			return fmt.Errorf("recorder: direction %s: %d frames but %d timestamps", dir, len(buf.frames), len(buf.timestamps))
		}

		l := sessionio.Layout{Dir: r.sessionDir, Direction: string(dir)}
		if err := sessionio.WriteCameraFile(l.CameraPath(), sessionio.CameraData{
			Height: r.height, Width: r.width, Channels: r.channels,
			Frames: buf.frames, TimestampsUs: buf.timestamps,
		}); err != nil {
			return err
		}
		if err := sessionio.WriteStimulusFile(l.StimulusPath(), sessionio.StimulusData{AnglesDeg: buf.angles}); err != nil {
			return err
		}
		if err := sessionio.WriteEvents(l.EventsPath(), buf.events); err != nil {
			return err
		}

		directions = append(directions, string(dir))
		shapes[string(dir)] = sessionio.DirectionShape{
			FrameCount: len(buf.frames),
			Width:      r.width,
			Height:     r.height,
			Channels:   r.channels,
		}
		totalFrames += len(buf.frames)
	}

	if len(directions) == 0 {
		return fmt.Errorf("recorder: cannot save an empty session (no direction has any frames)")
	}

	meta := sessionio.Metadata{
		SessionName:     fmt.Sprintf("session-%d", time.Now().UnixNano()),
		TimestampEpoch:  time.Now().Unix(),
		Directions:      directions,
		DirectionShapes: shapes,
		StimulusParams: structToMap(r.stimulusCfg),
		Monitor:        structToMap(r.monitorCfg),
		Camera:         structToMap(r.cameraCfg),
		Acquisition:    structToMap(r.acquisition),
		TimestampInfo:  r.timestampInfo,
	}
	return sessionio.WriteMetadata(sessionio.MetadataPath(r.sessionDir), meta)
}

// structToMap round-trips v through JSON to produce the loosely-typed map
// metadata.json's stimulus_params/monitor/camera/acquisition fields use.
func structToMap(v interface{}) map[string]interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}
