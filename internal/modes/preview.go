// Package modes implements the three mode controllers (preview, record,
// playback) that sit between command dispatch and the acquisition state
// coordinator.
package modes

import (
	"fmt"

	"github.com/isi-macroscope/acquisition-core/internal/acqstate"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/shmplane"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
)

// StimulusPlaneWriter is the subset of *shmplane.Plane the preview
// controller writes a rendered frame through.
type StimulusPlaneWriter interface {
	WriteFrame(payload []byte, meta shmplane.FrameMeta) (shmplane.FrameMeta, error)
}

// StimulusFrameMeta is the metadata the preview controller returns to its
// caller for publication on the sync channel.
type StimulusFrameMeta struct {
	FrameIndex  int
	TotalFrames int
	Direction   string
	Angle       float64
	StartAngle  float64
	EndAngle    float64
	TimestampUs int64
}

// PreviewController renders one stimulus frame on demand, independent of
// the camera-triggered controller and the recorder.
type PreviewController struct {
	state   *acqstate.Coordinator
	stimMgr *stimulus.Manager
	plane   StimulusPlaneWriter
}

// NewPreviewController creates a PreviewController.
func NewPreviewController(state *acqstate.Coordinator, stimMgr *stimulus.Manager, plane StimulusPlaneWriter) *PreviewController {
	return &PreviewController{state: state, stimMgr: stimMgr, plane: plane}
}

// Activate validates the state transition, renders frame_index of
// direction, writes it to the stimulus plane, and returns its metadata for
// the caller to publish on the sync channel.
func (p *PreviewController) Activate(direction config.Direction, frameIndex int, showMask bool) (StimulusFrameMeta, error) {
	if err := p.state.Transition(acqstate.StatePreview); err != nil {
		return StimulusFrameMeta{}, err
	}

	frame, meta, err := p.stimMgr.Generator().GenerateFrameAtIndex(direction, frameIndex, showMask)
	if err != nil {
		return StimulusFrameMeta{}, err
	}

	out := StimulusFrameMeta{
		FrameIndex:  meta.FrameIndex,
		TotalFrames: meta.TotalFrames,
		Direction:   string(meta.Direction),
		Angle:       meta.Angle,
		StartAngle:  meta.StartAngle,
		EndAngle:    meta.EndAngle,
	}
	if p.plane != nil {
		written, err := p.plane.WriteFrame(frame.Pixels, shmplane.FrameMeta{
			FrameIndex:   out.FrameIndex,
			TotalFrames:  out.TotalFrames,
			Direction:    out.Direction,
			AngleDegrees: out.Angle,
			StartAngle:   out.StartAngle,
			EndAngle:     out.EndAngle,
			WidthPx:      frame.Width,
			HeightPx:     frame.Height,
		})
		if err != nil {
			return StimulusFrameMeta{}, fmt.Errorf("modes: preview write failed: %w", err)
		}
		out.TimestampUs = written.TimestampUs
	}
	return out, nil
}
