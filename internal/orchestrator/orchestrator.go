// Package orchestrator sequences the sweep protocol of the acquisition
// core: baseline, per-direction repeats, inter-trial gaps, and save, on its
// own worker thread, distinct from the camera driver's capture loop.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/acqstate"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ctstim"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// EventPublisher is the narrow sync/event-channel surface the orchestrator
// needs; internal/ipc's EventBus satisfies it.
type EventPublisher interface {
	Publish(topic string, payload interface{})
}

// Recorder is the subset of *recorder.Recorder the orchestrator drives.
type Recorder interface {
	Start(direction config.Direction)
	Stop()
	Save() error
}

// BlackScreenDisplayer shows a black frame for the given duration on the
// stimulus plane, used for baseline and inter-trial gaps.
type BlackScreenDisplayer interface {
	DisplayBlackScreen(ctx context.Context, d time.Duration) error
}

// RecorderFactory creates a fresh Recorder for one sweep's session
// directory. Sessions are one-shot: a new Recorder per start_acquisition.
type RecorderFactory func() Recorder

// Orchestrator sequences one full sweep across directions and repeats.
type Orchestrator struct {
	ctstim      *ctstim.Controller
	state       *acqstate.Coordinator
	display     BlackScreenDisplayer
	publisher   EventPublisher
	newRecorder RecorderFactory
	logger      *logging.Logger

	mu      sync.Mutex
	running bool
	stopReq int32
}

// New creates an Orchestrator.
func New(ctstimCtrl *ctstim.Controller, state *acqstate.Coordinator, display BlackScreenDisplayer, publisher EventPublisher, newRecorder RecorderFactory, logger *logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewLogger("orchestrator")
	}
	return &Orchestrator{
		ctstim:      ctstimCtrl,
		state:       state,
		display:     display,
		publisher:   publisher,
		newRecorder: newRecorder,
		logger:      logger,
	}
}

// Start validates the acquisition preconditions and, if they hold, runs the
// sweep protocol synchronously on the calling goroutine (callers run this
// in their own worker goroutine to keep it off the command dispatch path).
func (o *Orchestrator) Start(ctx context.Context, camera config.CameraParams, acq config.AcquisitionParams, stim config.StimulusParams) error {
	if err := camera.ValidateForRecording(); err != nil {
		return err
	}
	if err := acq.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: acquisition already running")
	}
	o.running = true
	atomic.StoreInt32(&o.stopReq, 0)
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	if err := o.state.Transition(acqstate.StateRecording); err != nil {
		return err
	}
	defer o.state.Transition(acqstate.StateIdle)

	directions := stim.Directions
	if len(directions) == 0 {
		directions = config.AllDirections
	}

	o.publisher.Publish("acquisition_started", nil)

	if err := o.displayBlack(ctx, acq.BaselineSec); err != nil {
		return err
	}

	rec := o.newRecorder()

	totalSteps := len(directions) * acq.Repeats
	step := 0
	for di, direction := range directions {
		for cycle := 0; cycle < acq.Repeats; cycle++ {
			if o.stopRequested() {
				return o.finishEarly(rec)
			}

			if err := o.ctstim.StartDirection(direction); err != nil {
				return err
			}
			rec.Start(direction)

			if err := o.waitForSweepCompletion(ctx, direction); err != nil {
				return err
			}

			o.ctstim.StopDirection()
			rec.Stop()

			step++
			o.publisher.Publish("acquisition_progress", map[string]interface{}{
				"fraction": float64(step) / float64(totalSteps),
				"stage":    fmt.Sprintf("%s cycle %d/%d", direction, cycle+1, acq.Repeats),
			})

			if cycle < acq.Repeats-1 {
				if err := o.displayBlack(ctx, acq.BetweenTrialsSec); err != nil {
					return err
				}
			}
		}
		if di != len(directions)-1 {
			if err := o.displayBlack(ctx, acq.BetweenTrialsSec); err != nil {
				return err
			}
		}
	}

	if err := o.displayBlack(ctx, acq.BaselineSec); err != nil {
		return err
	}

	if err := rec.Save(); err != nil {
		o.publisher.Publish("acquisition_error", map[string]interface{}{"error": err.Error()})
		return err
	}

	o.publisher.Publish("acquisition_complete", nil)
	return nil
}

// waitForSweepCompletion polls ctstim until it reports frame_index >=
// total_frames or a stop has been requested. The current frame in flight
// is allowed to finish; this only observes the controller's own state,
// advanced by the camera driver's loop.
func (o *Orchestrator) waitForSweepCompletion(ctx context.Context, direction config.Direction) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		frameIndex, total, activeDir := o.ctstim.Progress()
		if activeDir == direction && frameIndex >= total {
			return nil
		}
		if o.stopRequested() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) displayBlack(ctx context.Context, seconds float64) error {
	if o.display == nil || seconds <= 0 {
		return nil
	}
	return o.display.DisplayBlackScreen(ctx, time.Duration(seconds*float64(time.Second)))
}

// StopAcquisition requests cancellation; checked between waits.
func (o *Orchestrator) StopAcquisition() {
	atomic.StoreInt32(&o.stopReq, 1)
}

func (o *Orchestrator) stopRequested() bool {
	return atomic.LoadInt32(&o.stopReq) == 1
}

func (o *Orchestrator) finishEarly(rec Recorder) error {
	o.ctstim.StopDirection()
	rec.Stop()
	if err := rec.Save(); err != nil {
		return err
	}
	o.publisher.Publish("acquisition_complete", nil)
	return nil
}

// IsRunning reports whether a sweep is currently in progress.
func (o *Orchestrator) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}
