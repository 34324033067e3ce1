package modes

import (
	"context"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/shmplane"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
)

// BlackScreenController writes one all-zero stimulus frame to the shared
// plane and holds it for a caller-specified duration, used for baseline and
// inter-trial gaps by the orchestrator and for the display_black_screen
// command.
type BlackScreenController struct {
	stimMgr *stimulus.Manager
	plane   StimulusPlaneWriter
}

// NewBlackScreenController creates a BlackScreenController.
func NewBlackScreenController(stimMgr *stimulus.Manager, plane StimulusPlaneWriter) *BlackScreenController {
	return &BlackScreenController{stimMgr: stimMgr, plane: plane}
}

// DisplayBlackScreen writes the black frame once, then blocks until d
// elapses or ctx is cancelled.
func (b *BlackScreenController) DisplayBlackScreen(ctx context.Context, d time.Duration) error {
	frame := b.stimMgr.Generator().BlackFrame()
	if b.plane != nil {
		if _, err := b.plane.WriteFrame(frame.Pixels, shmplane.FrameMeta{
			FrameIndex:  0,
			TotalFrames: 1,
			Direction:   "none",
			WidthPx:     frame.Width,
			HeightPx:    frame.Height,
		}); err != nil {
			return err
		}
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
