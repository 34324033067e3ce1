package config

import "fmt"

// Direction identifies one of the four drift-bar sweep directions.
type Direction string

const (
	DirectionLR Direction = "LR"
	DirectionRL Direction = "RL"
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
)

// AllDirections is the canonical ordering used when a direction list is unset.
var AllDirections = []Direction{DirectionLR, DirectionRL, DirectionTB, DirectionBT}

// ValidDirection reports whether d is one of the four recognized directions.
func ValidDirection(d Direction) bool {
	switch d {
	case DirectionLR, DirectionRL, DirectionTB, DirectionBT:
		return true
	default:
		return false
	}
}

// Config is the complete, file-backed configuration for the acquisition core.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Monitor     MonitorParams     `mapstructure:"monitor"`
	Camera      CameraParams      `mapstructure:"camera"`
	Stimulus    StimulusParams    `mapstructure:"stimulus"`
	Acquisition AcquisitionParams `mapstructure:"acquisition"`
	Analysis    AnalysisParams    `mapstructure:"analysis"`
}

// ServerConfig controls process-level behavior of the IPC surface.
type ServerConfig struct {
	ShutdownTimeoutSec float64 `mapstructure:"shutdown_timeout_sec"`
	HealthIntervalSec  float64 `mapstructure:"health_interval_sec"`
}

// LoggingConfig mirrors internal/logging.LoggingConfig so the root config
// can be unmarshaled directly by viper without an import cycle.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}

// MonitorParams describes the presentation monitor's geometry.
type MonitorParams struct {
	DistanceCM      float64 `mapstructure:"monitor_distance_cm"`
	LateralAngleDeg float64 `mapstructure:"monitor_lateral_angle_deg"`
	WidthPx         int     `mapstructure:"monitor_width_px"`
	HeightPx        int     `mapstructure:"monitor_height_px"`
	WidthCM         float64 `mapstructure:"monitor_width_cm"`
	HeightCM        float64 `mapstructure:"monitor_height_cm"`
}

// Validate checks that the monitor geometry is usable by the stimulus generator.
func (m MonitorParams) Validate() error {
	if m.WidthPx <= 0 || m.HeightPx <= 0 {
		return fmt.Errorf("monitor: width_px and height_px must be positive, got %dx%d", m.WidthPx, m.HeightPx)
	}
	if m.DistanceCM <= 0 {
		return fmt.Errorf("monitor: monitor_distance_cm must be positive, got %f", m.DistanceCM)
	}
	if m.WidthCM <= 0 || m.HeightCM <= 0 {
		return fmt.Errorf("monitor: monitor_width_cm and monitor_height_cm must be positive")
	}
	return nil
}

// CameraParams selects and configures the capture device.
type CameraParams struct {
	SelectedCamera string  `mapstructure:"selected_camera"`
	WidthPx        int     `mapstructure:"camera_width_px"`
	HeightPx       int     `mapstructure:"camera_height_px"`
	FPS            float64 `mapstructure:"camera_fps"`
}

// Validate checks fields that are always required, independent of recording.
func (c CameraParams) Validate() error {
	if c.SelectedCamera == "" {
		return fmt.Errorf("camera: selected_camera is required")
	}
	if c.WidthPx <= 0 || c.HeightPx <= 0 {
		return fmt.Errorf("camera: camera_width_px and camera_height_px must be positive")
	}
	return nil
}

// ValidateForRecording additionally enforces the recording-only requirement
// that camera_fps be a positive number (spec section 4.8).
func (c CameraParams) ValidateForRecording() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.FPS <= 0 {
		return fmt.Errorf("camera_fps is required and must be > 0 for recording, got %f", c.FPS)
	}
	return nil
}

// StimulusParams parametrizes the drifting-bar retinotopic stimulus.
type StimulusParams struct {
	BarWidthDeg    float64     `mapstructure:"bar_width_deg"`
	DriftSpeedDegS float64     `mapstructure:"drift_speed_deg_s"`
	CheckerSizeDeg float64     `mapstructure:"checker_size_deg"`
	FlickerHz      float64     `mapstructure:"flicker_hz"`
	Contrast       float64     `mapstructure:"contrast"`
	NumCycles      int         `mapstructure:"num_cycles"`
	Directions     []Direction `mapstructure:"directions"`
}

// Validate checks the stimulus parameters for internal consistency.
func (s StimulusParams) Validate() error {
	if s.BarWidthDeg <= 0 {
		return fmt.Errorf("stimulus: bar_width_deg must be positive")
	}
	if s.DriftSpeedDegS <= 0 {
		return fmt.Errorf("stimulus: drift_speed_deg_s must be positive")
	}
	if s.NumCycles <= 0 {
		return fmt.Errorf("stimulus: num_cycles must be positive")
	}
	if s.Contrast < 0 || s.Contrast > 1 {
		return fmt.Errorf("stimulus: contrast must be within [0, 1], got %f", s.Contrast)
	}
	for _, d := range s.Directions {
		if !ValidDirection(d) {
			return fmt.Errorf("stimulus: unknown direction %q", d)
		}
	}
	return nil
}

// AcquisitionParams controls the sweep protocol timing.
type AcquisitionParams struct {
	BaselineSec      float64 `mapstructure:"baseline_sec"`
	BetweenTrialsSec float64 `mapstructure:"between_trials_sec"`
	Repeats          int     `mapstructure:"repeats"`
}

// Validate checks that the sweep timing parameters are usable.
func (a AcquisitionParams) Validate() error {
	if a.BaselineSec < 0 || a.BetweenTrialsSec < 0 {
		return fmt.Errorf("acquisition: baseline_sec and between_trials_sec must be non-negative")
	}
	if a.Repeats <= 0 {
		return fmt.Errorf("acquisition: repeats must be positive, got %d", a.Repeats)
	}
	return nil
}

// AnalysisParams tunes the Fourier retinotopic analysis pipeline.
type AnalysisParams struct {
	SmoothingSigma           float64 `mapstructure:"smoothing_sigma"`
	MagnitudeThreshold       float64 `mapstructure:"magnitude_threshold"`
	PhaseFilterSigma         float64 `mapstructure:"phase_filter_sigma"`
	VFSThresholdSD           float64 `mapstructure:"vfs_threshold_sd"`
	AreaMinSize              float64 `mapstructure:"area_min_size"`
	ResponseThresholdPercent float64 `mapstructure:"response_threshold_percent"`
	GradientWindowSize       int     `mapstructure:"gradient_window_size"`
	RingSizeMM               float64 `mapstructure:"ring_size_mm"`
	HemodynamicDelaySec      float64 `mapstructure:"hemodynamic_delay_sec"`
}

// Validate checks the analysis parameters for internal consistency.
func (a AnalysisParams) Validate() error {
	if a.SmoothingSigma < 0 {
		return fmt.Errorf("analysis: smoothing_sigma must be non-negative")
	}
	if a.AreaMinSize < 0 {
		return fmt.Errorf("analysis: area_min_size must be non-negative")
	}
	if a.GradientWindowSize <= 0 {
		return fmt.Errorf("analysis: gradient_window_size must be positive")
	}
	if a.HemodynamicDelaySec < 0 {
		return fmt.Errorf("analysis: hemodynamic_delay_sec must be non-negative")
	}
	return nil
}

// Validate checks every group of the configuration.
func (c *Config) Validate() error {
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	if err := c.Camera.Validate(); err != nil {
		return err
	}
	if err := c.Stimulus.Validate(); err != nil {
		return err
	}
	if err := c.Acquisition.Validate(); err != nil {
		return err
	}
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	return nil
}
