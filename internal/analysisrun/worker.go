// Package analysisrun drives the analysis pipeline on its own daemon
// worker, translating pipeline stage boundaries and primary layer
// completions into published events, distinct from the synchronous,
// library-shaped internal/analysis package it wraps.
package analysisrun

import (
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/isi-macroscope/acquisition-core/internal/analysis"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// EventPublisher is the narrow event-channel surface the worker needs;
// internal/ipc's EventBus satisfies it.
type EventPublisher interface {
	Publish(topic string, payload interface{})
}

// Worker runs at most one analysis at a time on its own goroutine.
type Worker struct {
	publisher EventPublisher
	logger    *logging.Logger

	mu      sync.Mutex
	running bool
	stopReq int32

	lastResult     *analysis.Result
	lastSessionDir string
}

// New creates a Worker.
func New(publisher EventPublisher, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.NewLogger("analysisrun")
	}
	return &Worker{publisher: publisher, logger: logger}
}

// Start rejects if another analysis is running, otherwise runs the
// pipeline synchronously on the calling goroutine (callers run this in
// their own daemon goroutine).
func (w *Worker) Start(sessionDir string, camera config.CameraParams, stim config.StimulusParams, monitor config.MonitorParams, params config.AnalysisParams) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("analysisrun: an analysis is already running")
	}
	w.running = true
	atomic.StoreInt32(&w.stopReq, 0)
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.publisher.Publish("analysis_started", map[string]interface{}{"session_path": sessionDir})

	result, err := analysis.Run(sessionDir, camera, stim, monitor, params, w.onProgress, w.stopRequested)
	if err != nil {
		w.publisher.Publish("analysis_error", map[string]interface{}{"error": err.Error()})
		return err
	}

	w.mu.Lock()
	w.lastResult = result
	w.lastSessionDir = sessionDir
	w.mu.Unlock()

	w.publishLayers(result)

	w.publisher.Publish("analysis_complete", map[string]interface{}{
		"num_areas":   result.Area.NumAreas,
		"output_path": sessionDir,
	})
	return nil
}

func (w *Worker) onProgress(p analysis.Progress) {
	w.publisher.Publish("analysis_progress", map[string]interface{}{
		"fraction": p.Fraction,
		"stage":    p.Stage,
	})
}

// publishLayers renders and publishes the five primary layers as they
// become available after the pipeline completes. Cancellation is
// cooperative and only takes effect at stage boundaries, so once Run has
// returned a result there is nothing left to cancel mid-render; the
// per-layer loop still checks stopRequested so a stop arriving during
// rendering skips the remaining layers.
func (w *Worker) publishLayers(r *analysis.Result) {
	type layer struct {
		name   string
		render func() (LayerImage, error)
	}
	layers := []layer{
		{"azimuth", func() (LayerImage, error) { return renderHue(r.Azimuth) }},
		{"elevation", func() (LayerImage, error) { return renderHue(r.Elevation) }},
		{"sign", func() (LayerImage, error) { return renderDiverging(r.Sign) }},
		{"area_map", func() (LayerImage, error) { return renderSequential(r.Area.AreaMap) }},
		{"boundary_map", func() (LayerImage, error) { return renderGray(r.Boundary) }},
	}

	for _, l := range layers {
		if w.stopRequested() {
			return
		}
		img, err := l.render()
		if err != nil {
			w.logger.WithError(err).Warn("Failed to render layer " + l.name)
			continue
		}
		w.publisher.Publish("analysis_layer_ready", map[string]interface{}{
			"layer":      l.name,
			"width":      img.Width,
			"height":     img.Height,
			"png_base64": base64.StdEncoding.EncodeToString(img.PNGBytes),
		})
	}
}

// StopAnalysis requests cooperative cancellation; effective only at the
// next pipeline stage boundary.
func (w *Worker) StopAnalysis() {
	atomic.StoreInt32(&w.stopReq, 1)
}

func (w *Worker) stopRequested() bool {
	return atomic.LoadInt32(&w.stopReq) == 1
}

// IsRunning reports whether an analysis is currently in progress.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RenderLayer renders one named layer of the most recently completed
// analysis on demand, for callers that need a layer the published
// analysis_layer_ready events already covered (e.g. a client that
// (re)connected after the run finished) or one of the advanced
// per-direction phase/magnitude layers that are never auto-published.
func (w *Worker) RenderLayer(name string) (LayerImage, error) {
	w.mu.Lock()
	r := w.lastResult
	w.mu.Unlock()
	if r == nil {
		return LayerImage{}, fmt.Errorf("analysisrun: no completed analysis available")
	}

	switch name {
	case "azimuth":
		return renderHue(r.Azimuth)
	case "elevation":
		return renderHue(r.Elevation)
	case "sign":
		return renderDiverging(r.Sign)
	case "area_map":
		return renderSequential(r.Area.AreaMap)
	case "boundary_map":
		return renderGray(r.Boundary)
	}

	if dir, kind, ok := splitAdvancedLayerName(name); ok {
		switch kind {
		case "phase":
			if pm, ok := r.PhaseByDirection[dir]; ok {
				return renderHue(analysis.FieldMap{Width: pm.Width, Height: pm.Height, Values: pm.Phase})
			}
		case "magnitude":
			if pm, ok := r.MagnitudeByDirection[dir]; ok {
				return renderSequential(analysis.FieldMap{Width: pm.Width, Height: pm.Height, Values: pm.Magnitude})
			}
		}
	}
	return LayerImage{}, fmt.Errorf("analysisrun: unknown layer %q", name)
}

func splitAdvancedLayerName(name string) (dir, kind string, ok bool) {
	for _, suffix := range []string{"_phase", "_magnitude"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix), strings.TrimPrefix(suffix, "_"), true
		}
	}
	return "", "", false
}

// ResultSummary is what get_analysis_results returns: shape and counts,
// never the numeric maps themselves.
type ResultSummary struct {
	SessionPath    string
	Width, Height  int
	NumAreas       int
	PrimaryLayers  []string
	AdvancedLayers []string
	HasAnatomical  bool
}

// LastResultSummary returns a summary of the most recently completed
// analysis, or ok=false if none has completed yet.
func (w *Worker) LastResultSummary() (ResultSummary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastResult == nil {
		return ResultSummary{}, false
	}
	r := w.lastResult
	advanced := make([]string, 0, len(r.PhaseByDirection))
	for dir := range r.PhaseByDirection {
		advanced = append(advanced, dir+"_phase", dir+"_magnitude")
	}
	return ResultSummary{
		SessionPath:    w.lastSessionDir,
		Width:          r.Width,
		Height:         r.Height,
		NumAreas:       r.Area.NumAreas,
		PrimaryLayers:  []string{"azimuth", "elevation", "sign", "area_map", "boundary_map"},
		AdvancedLayers: advanced,
		HasAnatomical:  len(r.Anatomical) > 0,
	}, true
}
