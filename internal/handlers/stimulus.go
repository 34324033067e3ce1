package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
)

// BlackScreenDisplayer shows a black frame on the stimulus plane for a
// caller-specified duration.
type BlackScreenDisplayer interface {
	DisplayBlackScreen(ctx context.Context, d time.Duration) error
}

// StimulusDeps collects the components the stimulus command family
// delegates to.
type StimulusDeps struct {
	ConfigManager *config.ConfigManager
	StimMgr       *stimulus.Manager
	Display       BlackScreenDisplayer
}

// RegisterStimulus registers display_black_screen, get_stimulus_frame, and
// update_stimulus_parameters.
func RegisterStimulus(d *ipc.Dispatcher, deps StimulusDeps, logger *logging.Logger) {
	register(d, "display_black_screen", wrap(logger, "display_black_screen", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			DurationSec float64 `json:"duration_sec"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if deps.Display == nil {
			return nil, fmt.Errorf("handlers: no stimulus plane configured")
		}
		if err := deps.Display.DisplayBlackScreen(context.Background(), time.Duration(p.DurationSec*float64(time.Second))); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "displayed"}, nil
	}))

	register(d, "get_stimulus_frame", wrap(logger, "get_stimulus_frame", func(raw json.RawMessage) (interface{}, error) {
		var p struct {
			Direction   string `json:"direction"`
			FrameIndex  int    `json:"frame_index"`
			ShowBarMask bool   `json:"show_bar_mask"`
		}
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		frame, meta, err := deps.StimMgr.Generator().GenerateFrameAtIndex(config.Direction(p.Direction), p.FrameIndex, p.ShowBarMask)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"width":        frame.Width,
			"height":       frame.Height,
			"pixels":       frame.Pixels,
			"frame_index":  meta.FrameIndex,
			"total_frames": meta.TotalFrames,
			"direction":    string(meta.Direction),
			"angle_deg":    meta.Angle,
		}, nil
	}))

	register(d, "update_stimulus_parameters", wrap(logger, "update_stimulus_parameters", func(raw json.RawMessage) (interface{}, error) {
		var p config.StimulusParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		if err := deps.ConfigManager.UpdateGroup(config.GroupStimulus, func(c *config.Config) {
			c.Stimulus = p
		}); err != nil {
			return nil, err
		}
		return map[string]interface{}{"status": "updated"}, nil
	}))
}
