package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/isi-macroscope/acquisition-core/internal/analysisrun"
	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// AnalysisDeps collects the components the analysis command family
// delegates to.
type AnalysisDeps struct {
	ConfigManager *config.ConfigManager
	Worker        *analysisrun.Worker
}

// RegisterAnalysis registers start_analysis, stop_analysis,
// get_analysis_status, get_analysis_results, and get_analysis_layer.
func RegisterAnalysis(d *ipc.Dispatcher, deps AnalysisDeps, logger *logging.Logger) {
	logger = ensureLogger(logger)
	register(d, "start_analysis", wrap(logger, "start_analysis", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			SessionPath string                 `json:"session_path"`
			Camera      *config.CameraParams   `json:"camera"`
			Stimulus    *config.StimulusParams `json:"stimulus"`
			Monitor     *config.MonitorParams  `json:"monitor"`
			Analysis    *config.AnalysisParams `json:"analysis"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if p.SessionPath == "" {
			return nil, fmt.Errorf("handlers: start_analysis requires session_path")
		}
		if deps.Worker.IsRunning() {
			return nil, fmt.Errorf("handlers: an analysis is already running")
		}

		cfg := deps.ConfigManager.GetConfig()
		camera := cfg.Camera
		if p.Camera != nil {
			camera = *p.Camera
		}
		stim := cfg.Stimulus
		if p.Stimulus != nil {
			stim = *p.Stimulus
		}
		monitor := cfg.Monitor
		if p.Monitor != nil {
			monitor = *p.Monitor
		}
		params := cfg.Analysis
		if p.Analysis != nil {
			params = *p.Analysis
		}
		if err := params.Validate(); err != nil {
			return nil, err
		}

		// The pipeline runs for the full session (tens of seconds of
		// numeric work); launched on its own goroutine to keep command
		// dispatch free for stop_analysis/get_analysis_status.
		go func() {
			if err := deps.Worker.Start(p.SessionPath, camera, stim, monitor, params); err != nil {
				logger.WithError(err).Error("analysis run failed")
			}
		}()
		return map[string]interface{}{"status": "started"}, nil
	}))

	register(d, "stop_analysis", wrap(logger, "stop_analysis", func(raw json.RawMessage) (interface{}, error) {
		deps.Worker.StopAnalysis()
		return map[string]interface{}{"status": "stop_requested"}, nil
	}))

	register(d, "get_analysis_status", wrap(logger, "get_analysis_status", func(raw json.RawMessage) (interface{}, error) {
		return map[string]interface{}{"running": deps.Worker.IsRunning()}, nil
	}))

	register(d, "get_analysis_results", wrap(logger, "get_analysis_results", func(raw json.RawMessage) (interface{}, error) {
		summary, ok := deps.Worker.LastResultSummary()
		if !ok {
			return nil, fmt.Errorf("handlers: no completed analysis available")
		}
		return map[string]interface{}{
			"session_path":    summary.SessionPath,
			"width":           summary.Width,
			"height":          summary.Height,
			"num_areas":       summary.NumAreas,
			"primary_layers":  summary.PrimaryLayers,
			"advanced_layers": summary.AdvancedLayers,
			"has_anatomical":  summary.HasAnatomical,
		}, nil
	}))

	register(d, "get_analysis_layer", wrap(logger, "get_analysis_layer", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			Layer string `json:"layer"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		img, err := deps.Worker.RenderLayer(p.Layer)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"layer":      p.Layer,
			"width":      img.Width,
			"height":     img.Height,
			"png_base64": base64.StdEncoding.EncodeToString(img.PNGBytes),
		}, nil
	}))
}
