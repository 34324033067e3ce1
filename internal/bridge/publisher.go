// Package bridge adapts the composition root's concrete components to the
// narrow interfaces other packages depend on, mirroring the teacher's
// event-notifier adapters (MediaMTXEventNotifier, SystemEventNotifier) that
// sit between one component's native shape and another's expected surface.
package bridge

import (
	"github.com/isi-macroscope/acquisition-core/internal/camera"
	"github.com/isi-macroscope/acquisition-core/internal/ctstim"
	"github.com/isi-macroscope/acquisition-core/internal/shmplane"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
)

// EventPublisher is the narrow sync/event-channel surface FramePublisher
// publishes frame-ready notifications on; internal/ipc's EventBus satisfies
// it.
type EventPublisher interface {
	Publish(topic string, payload interface{})
}

// FramePublisher fans a captured camera frame (and, when a sweep is active,
// the stimulus frame generated alongside it) out to the camera and stimulus
// shared-memory planes and announces each write on the event bus, mirroring
// the publish_camera_frame/publish_stimulus_frame steps of the capture loop.
type FramePublisher struct {
	cameraPlane   *shmplane.Plane
	stimulusPlane *shmplane.Plane
	bus           EventPublisher
}

// NewFramePublisher creates a FramePublisher writing camera frames into
// cameraPlane and stimulus frames into stimulusPlane, announcing both on
// bus.
func NewFramePublisher(cameraPlane, stimulusPlane *shmplane.Plane, bus EventPublisher) *FramePublisher {
	return &FramePublisher{cameraPlane: cameraPlane, stimulusPlane: stimulusPlane, bus: bus}
}

// PublishCameraFrame satisfies camera.FramePublisher.
func (p *FramePublisher) PublishCameraFrame(frame camera.Frame, ts int64) error {
	meta, err := p.cameraPlane.WriteFrame(frame.Pixels, shmplane.FrameMeta{
		TimestampUs: ts,
		WidthPx:     frame.Width,
		HeightPx:    frame.Height,
	})
	if err != nil {
		return err
	}
	p.bus.Publish("camera_frame", meta)
	return nil
}

// PublishStimulusFrame satisfies camera.FramePublisher.
func (p *FramePublisher) PublishStimulusFrame(frame stimulus.Frame, stimMeta *ctstim.FrameMeta) error {
	meta, err := p.stimulusPlane.WriteFrame(frame.Pixels, shmplane.FrameMeta{
		TimestampUs:  stimMeta.TimestampUs,
		FrameIndex:   stimMeta.FrameIndex,
		TotalFrames:  stimMeta.TotalFrames,
		Direction:    string(stimMeta.Direction),
		AngleDegrees: stimMeta.Angle,
		StartAngle:   stimMeta.StartAngle,
		EndAngle:     stimMeta.EndAngle,
		WidthPx:      frame.Width,
		HeightPx:     frame.Height,
	})
	if err != nil {
		return err
	}
	p.bus.Publish("stimulus_frame", meta)
	return nil
}
