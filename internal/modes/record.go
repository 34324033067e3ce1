package modes

import (
	"context"

	"github.com/isi-macroscope/acquisition-core/internal/acqstate"
	"github.com/isi-macroscope/acquisition-core/internal/config"
)

// Sweeper is the subset of *orchestrator.Orchestrator the record mode
// controller delegates to.
type Sweeper interface {
	Start(ctx context.Context, camera config.CameraParams, acq config.AcquisitionParams, stim config.StimulusParams) error
	StopAcquisition()
}

// RecordController is a thin wrapper validating camera FPS, transitioning
// state to RECORDING, and delegating the sweep to the orchestrator.
type RecordController struct {
	state *acqstate.Coordinator
	sweep Sweeper
}

// NewRecordController creates a RecordController.
func NewRecordController(state *acqstate.Coordinator, sweep Sweeper) *RecordController {
	return &RecordController{state: state, sweep: sweep}
}

// Activate validates camera.camera_fps, transitions to RECORDING, and
// starts the sweep. Callers run this in their own goroutine; Start blocks
// for the duration of the sweep.
func (r *RecordController) Activate(ctx context.Context, camera config.CameraParams, acq config.AcquisitionParams, stim config.StimulusParams) error {
	if err := camera.ValidateForRecording(); err != nil {
		return err
	}
	return r.sweep.Start(ctx, camera, acq, stim)
}

// Deactivate signals the orchestrator to stop.
func (r *RecordController) Deactivate() {
	r.sweep.StopAcquisition()
}
