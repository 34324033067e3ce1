package analysis

import (
	"fmt"
	"math"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
)

// Progress reports one stage boundary of Run, for a caller (the analysis
// orchestrator) to translate into analysis_progress events.
type Progress struct {
	Fraction float64
	Stage    string
}

// Result is everything Run produces: the five primary maps plus
// per-direction phase/magnitude, ready for sessionio persistence.
type Result struct {
	Width, Height int
	Azimuth       FieldMap
	Elevation     FieldMap
	Sign          FieldMap
	Area          Segmentation
	Boundary      FieldMap
	Anatomical    []byte

	PhaseByDirection     map[string]PixelPhaseMagnitude
	MagnitudeByDirection map[string]PixelPhaseMagnitude
}

var stages = []string{
	"load_validate", "correlate", "hemodynamic_compensation",
	"fft", "bidirectional_synthesis", "gradients",
	"visual_field_sign", "segmentation", "persist",
}

// ErrCancelled is returned by Run when cancelled is non-nil and reports
// true at a stage boundary.
var ErrCancelled = fmt.Errorf("analysis: cancelled")

// Run executes the full nine-stage pipeline against a recorded session
// directory, reporting progress through onProgress (may be nil), and
// returns the persisted Result. If cancelled is non-nil, it is polled at
// each stage boundary; a true result stops the pipeline before the next
// stage starts and Run returns ErrCancelled. Cancellation never interrupts
// a stage already in flight.
func Run(sessionDir string, camera config.CameraParams, stim config.StimulusParams, monitor config.MonitorParams, params config.AnalysisParams, onProgress func(Progress), cancelled func() bool) (*Result, error) {
	report := func(i int) error {
		if onProgress != nil {
			onProgress(Progress{Fraction: float64(i+1) / float64(len(stages)), Stage: stages[i]})
		}
		if cancelled != nil && cancelled() {
			return ErrCancelled
		}
		return nil
	}

	session, err := LoadAndValidate(sessionDir)
	if err != nil {
		return nil, err
	}
	if err := report(0); err != nil {
		return nil, err
	}

	correlated := make(map[string]DirectionFrames)
	for _, dir := range session.Meta.Directions {
		cf, err := session.Correlate(dir)
		if err != nil {
			return nil, err
		}
		correlated[dir] = cf
	}
	if err := report(1); err != nil {
		return nil, err
	}

	if camera.FPS <= 0 {
		return nil, fmt.Errorf("analysis: camera_fps must be positive")
	}
	shifted := make(map[string]DirectionFrames, len(correlated))
	for dir, cf := range correlated {
		shifted[dir] = hemodynamicShift(cf, params.HemodynamicDelaySec, camera.FPS)
	}
	if err := report(2); err != nil {
		return nil, err
	}

	phase := make(map[string]PixelPhaseMagnitude, len(shifted))
	for dir, cf := range shifted {
		phase[dir] = fftPhaseMagnitude(cf, stim.NumCycles)
	}
	if err := report(3); err != nil {
		return nil, err
	}

	result := &Result{
		PhaseByDirection:     phase,
		MagnitudeByDirection: phase,
	}

	horizExtentDeg := angularExtentDeg(monitor.WidthCM, monitor.DistanceCM)
	vertExtentDeg := angularExtentDeg(monitor.HeightCM, monitor.DistanceCM)

	var azimuth, elevation FieldMap
	haveAz, haveEl := false, false
	if lr, ok := phase[string(config.DirectionLR)]; ok {
		if rl, ok := phase[string(config.DirectionRL)]; ok {
			azimuth = synthesizeBidirectional(lr, rl, horizExtentDeg)
			haveAz = true
		}
	}
	if tb, ok := phase[string(config.DirectionTB)]; ok {
		if bt, ok := phase[string(config.DirectionBT)]; ok {
			elevation = synthesizeBidirectional(tb, bt, vertExtentDeg)
			haveEl = true
		}
	}
	if err := report(4); err != nil {
		return nil, err
	}

	if !haveAz || !haveEl {
		return nil, fmt.Errorf("analysis: both LR/RL and TB/BT direction pairs are required to compute visual field sign")
	}

	azSmooth := gaussianSmooth(azimuth, params.SmoothingSigma)
	elSmooth := gaussianSmooth(elevation, params.SmoothingSigma)
	azGrad := centralDifferenceGradients(azSmooth)
	elGrad := centralDifferenceGradients(elSmooth)
	if err := report(5); err != nil {
		return nil, err
	}

	sign := visualFieldSign(azGrad, elGrad)
	if err := report(6); err != nil {
		return nil, err
	}

	boundary := boundaryMap(sign)
	minSize := int(params.AreaMinSize)
	if minSize < 1 {
		minSize = 1
	}
	areas := segmentSignMap(sign, minSize)
	if err := report(7); err != nil {
		return nil, err
	}

	result.Width, result.Height = azimuth.Width, azimuth.Height
	result.Azimuth = azimuth
	result.Elevation = elevation
	result.Sign = sign
	result.Boundary = boundary
	result.Area = areas

	if err := persist(sessionDir, result); err != nil {
		return nil, err
	}
	report(8)

	return result, nil
}

// angularExtentDeg converts a physical monitor dimension to the visual
// angle it subtends at the given viewing distance.
func angularExtentDeg(sizeCM, distanceCM float64) float64 {
	if distanceCM <= 0 {
		return 0
	}
	halfRad := math.Atan(sizeCM / 2 / distanceCM)
	return 2 * halfRad * 180 / math.Pi
}

func persist(sessionDir string, r *Result) error {
	phaseMaps := make(map[string][]float32, len(r.PhaseByDirection))
	magMaps := make(map[string][]float32, len(r.MagnitudeByDirection))
	for dir, p := range r.PhaseByDirection {
		phaseMaps[dir] = toFloat32(p.Phase)
	}
	for dir, m := range r.MagnitudeByDirection {
		magMaps[dir] = toFloat32(m.Magnitude)
	}

	out := sessionio.AnalysisResults{
		Height: r.Height, Width: r.Width,
		AzimuthMap:   toFloat32(r.Azimuth.Values),
		ElevationMap: toFloat32(r.Elevation.Values),
		SignMap:      toFloat32(r.Sign.Values),
		AreaMap:      toFloat32(r.Area.AreaMap.Values),
		BoundaryMap:  toFloat32(r.Boundary.Values),

		PhaseMaps:     phaseMaps,
		MagnitudeMaps: magMaps,
		NumAreas:      r.Area.NumAreas,
	}
	return sessionio.WriteAnalysisResults(sessionio.AnalysisResultsPath(sessionDir), out)
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
