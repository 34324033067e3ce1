// Package ctstim implements the camera-triggered stimulus controller: on
// each camera frame, it advances and renders the next stimulus frame for
// the active sweep direction, guaranteeing 1:1 frame correspondence by
// construction (the camera loop's cadence is the stimulus's cadence).
package ctstim

import (
	"sync"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
)

// Controller owns per-direction sweep state. It shares a single
// *stimulus.Generator (via the stimulus.Manager) with the preview mode
// controller, so both render frames from the same precomputed invariants.
type Controller struct {
	mu sync.Mutex

	stimMgr *stimulus.Manager

	direction   config.Direction
	frameIndex  int
	totalFrames int
	isActive    bool
}

// New creates a Controller that renders through stimMgr's shared generator.
func New(stimMgr *stimulus.Manager) *Controller {
	return &Controller{stimMgr: stimMgr}
}

// StartDirection begins a sweep in direction d: looks up total_frames from
// dataset_info(d) and resets frame_index to 0.
func (c *Controller) StartDirection(d config.Direction) error {
	info, err := c.stimMgr.Generator().DatasetInfo(d)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.direction = d
	c.frameIndex = 0
	c.totalFrames = info.TotalFrames
	c.isActive = true
	return nil
}

// StopDirection ends the active sweep, if any.
func (c *Controller) StopDirection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isActive = false
}

// IsActive reports whether a sweep is currently in progress.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isActive
}

// Progress reports the current frame index and total for the active sweep.
func (c *Controller) Progress() (frameIndex, totalFrames int, direction config.Direction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameIndex, c.totalFrames, c.direction
}

// GenerateNextFrame renders the next stimulus frame for the active
// direction, stamping it with ts, and increments frame_index. It returns
// (nil, nil) when no sweep is active or the sweep has already exhausted
// its total_frames — mirroring the None/None return of the source design.
func (c *Controller) GenerateNextFrame(ts int64) (*stimulus.Frame, *FrameMeta) {
	c.mu.Lock()
	if !c.isActive || c.frameIndex >= c.totalFrames {
		c.mu.Unlock()
		return nil, nil
	}
	dir := c.direction
	idx := c.frameIndex
	c.frameIndex++
	c.mu.Unlock()

	frame, meta, err := c.stimMgr.Generator().GenerateFrameAtIndex(dir, idx, true)
	if err != nil {
		return nil, nil
	}

	fm := &FrameMeta{
		FrameIndex:    meta.FrameIndex,
		TotalFrames:   meta.TotalFrames,
		Direction:     meta.Direction,
		Angle:         meta.Angle,
		StartAngle:    meta.StartAngle,
		EndAngle:      meta.EndAngle,
		TimestampUs:   ts,
	}
	return &frame, fm
}

// FrameMeta is the metadata record returned alongside each generated
// stimulus frame, carrying the same timestamp stamped on the triggering
// camera frame so the two can be recorded under identical ts.
type FrameMeta struct {
	FrameIndex  int
	TotalFrames int
	Direction   config.Direction
	Angle       float64
	StartAngle  float64
	EndAngle    float64
	TimestampUs int64
}
