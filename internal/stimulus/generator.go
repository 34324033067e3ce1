// Package stimulus renders the drifting-bar retinotopic stimulus with an
// optional counter-phase checkerboard, in spherical coordinates relative to
// a monitor at a configured distance, angle, and resolution.
package stimulus

import (
	"fmt"
	"math"
	"sync"

	"github.com/isi-macroscope/acquisition-core/internal/config"
)

// ComputeDevice names a rendering backend, selected in priority order.
type ComputeDevice string

const (
	ComputeDeviceCUDA  ComputeDevice = "GPU-CUDA"
	ComputeDeviceMetal ComputeDevice = "GPU-Metal"
	ComputeDeviceCPU   ComputeDevice = "CPU"
)

// candidateDevices lists the devices probed, in priority order. This build
// carries no CUDA or Metal cgo bindings, so CPU is the only device that ever
// probes available, but the selection order is preserved for parity with
// the preferred-device list the acquisition design calls for.
var candidateDevices = []ComputeDevice{ComputeDeviceCUDA, ComputeDeviceMetal, ComputeDeviceCPU}

func probeDevice(d ComputeDevice) bool {
	return d == ComputeDeviceCPU
}

func selectComputeDevice() ComputeDevice {
	for _, d := range candidateDevices {
		if probeDevice(d) {
			return d
		}
	}
	return ComputeDeviceCPU
}

// DatasetInfo describes a direction's sweep without rendering any frame.
type DatasetInfo struct {
	TotalFrames int
	StartAngle  float64
	EndAngle    float64
	FPSAssumed  float64
}

// Frame is a single rendered stimulus frame: a width*height grayscale plane
// in row-major order, each sample in [0, 255].
type Frame struct {
	Width, Height int
	Pixels        []uint8
}

// FrameMeta carries the generator's record of what it rendered.
type FrameMeta struct {
	Direction   config.Direction
	FrameIndex  int
	TotalFrames int
	Angle       float64
	StartAngle  float64
	EndAngle    float64
}

// invariants are precomputed once per (monitor, stimulus) configuration:
// the per-pixel spherical coordinates and the base checkerboard pattern.
// This is the main performance lever of frame generation.
type invariants struct {
	azimuthDeg  []float64 // width*height, row-major
	altitudeDeg []float64
	checker     []float64 // base pattern in [-1, 1]
}

// Generator renders stimulus frames for a fixed monitor+stimulus parameter
// pair. A Generator is invalidated by parameter change; callers should
// discard it and build a fresh one (see Manager).
type Generator struct {
	monitor  config.MonitorParams
	stimulus config.StimulusParams
	device   ComputeDevice

	once sync.Once
	inv  *invariants
}

// NewGenerator constructs a Generator for the given configuration. Invariant
// precomputation is deferred until the first frame or dataset_info request.
func NewGenerator(monitor config.MonitorParams, stim config.StimulusParams) *Generator {
	return &Generator{
		monitor:  monitor,
		stimulus: stim,
		device:   selectComputeDevice(),
	}
}

func (g *Generator) ensureInvariants() {
	g.once.Do(func() {
		g.inv = computeInvariants(g.monitor, g.stimulus)
	})
}

func computeInvariants(m config.MonitorParams, s config.StimulusParams) *invariants {
	w, h := m.WidthPx, m.HeightPx
	az := make([]float64, w*h)
	alt := make([]float64, w*h)
	checker := make([]float64, w*h)

	cxPx, cyPx := float64(w)/2.0, float64(h)/2.0
	pxPerCMx := float64(w) / m.WidthCM
	pxPerCMy := float64(h) / m.HeightCM
	checkerPeriodPx := s.CheckerSizeDeg * (float64(w) / 180.0)
	if checkerPeriodPx <= 0 {
		checkerPeriodPx = 1
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			xCM := (float64(x) - cxPx) / pxPerCMx
			yCM := (float64(y) - cyPx) / pxPerCMy

			azimuth := radToDeg(math.Atan2(xCM, m.DistanceCM)) + m.LateralAngleDeg
			altitude := radToDeg(math.Atan2(yCM, m.DistanceCM))

			idx := y*w + x
			az[idx] = azimuth
			alt[idx] = altitude

			cx := math.Floor(float64(x) / checkerPeriodPx)
			cy := math.Floor(float64(y) / checkerPeriodPx)
			if int(cx+cy)%2 == 0 {
				checker[idx] = 1.0
			} else {
				checker[idx] = -1.0
			}
		}
	}

	return &invariants{azimuthDeg: az, altitudeDeg: alt, checker: checker}
}

func radToDeg(r float64) float64 { return r * 180.0 / math.Pi }

// sweepExtent returns the angular field traversed by the bar for a
// direction: azimuth for LR/RL, altitude for TB/BT.
func (g *Generator) sweepExtent(dir config.Direction) (start, end float64, useAzimuth bool) {
	g.ensureInvariants()
	fieldMin, fieldMax := math.Inf(1), math.Inf(-1)
	field := g.inv.azimuthDeg
	useAzimuth = dir == config.DirectionLR || dir == config.DirectionRL
	if !useAzimuth {
		field = g.inv.altitudeDeg
	}
	for _, v := range field {
		if v < fieldMin {
			fieldMin = v
		}
		if v > fieldMax {
			fieldMax = v
		}
	}
	switch dir {
	case config.DirectionLR, config.DirectionTB:
		return fieldMin, fieldMax, useAzimuth
	default: // RL, BT sweep the opposite way
		return fieldMax, fieldMin, useAzimuth
	}
}

// DatasetInfo returns direction metadata without rendering any frame.
func (g *Generator) DatasetInfo(dir config.Direction) (DatasetInfo, error) {
	if !config.ValidDirection(dir) {
		return DatasetInfo{}, fmt.Errorf("stimulus: unknown direction %q", dir)
	}
	start, end, _ := g.sweepExtent(dir)
	sweepDeg := math.Abs(end - start)
	durationSec := sweepDeg / g.stimulus.DriftSpeedDegS
	fps := g.stimulus.FlickerHz
	if fps <= 0 {
		fps = 30
	}
	total := int(math.Round(durationSec*fps)) * g.stimulus.NumCycles
	if total < 1 {
		total = 1
	}
	return DatasetInfo{
		TotalFrames: total,
		StartAngle:  start,
		EndAngle:    end,
		FPSAssumed:  fps,
	}, nil
}

// angleAtIndex returns the bar's angular position for frame index within
// one cycle of direction dir's sweep.
func angleAtIndex(start, end float64, frameIndex, framesPerCycle int) float64 {
	if framesPerCycle <= 1 {
		return start
	}
	frac := float64(frameIndex%framesPerCycle) / float64(framesPerCycle-1)
	return start + frac*(end-start)
}

// GenerateFrameAtIndex renders frame frameIndex of direction dir. Two calls
// with identical (stimulus, monitor) parameters and the same (dir,
// frameIndex) produce byte-identical frames: generation is a pure function
// of the precomputed invariants and the two integer/float inputs below.
func (g *Generator) GenerateFrameAtIndex(dir config.Direction, frameIndex int, showBarMask bool) (Frame, FrameMeta, error) {
	info, err := g.DatasetInfo(dir)
	if err != nil {
		return Frame{}, FrameMeta{}, err
	}
	g.ensureInvariants()

	w, h := g.monitor.WidthPx, g.monitor.HeightPx
	start, end, useAzimuth := g.sweepExtent(dir)
	framesPerCycle := info.TotalFrames / g.stimulus.NumCycles
	if framesPerCycle < 1 {
		framesPerCycle = 1
	}
	angle := angleAtIndex(start, end, frameIndex, framesPerCycle)

	halfWidth := g.stimulus.BarWidthDeg / 2.0
	flickerPhase := float64(frameIndex) * g.stimulus.FlickerHz / info.FPSAssumed

	pixels := make([]uint8, w*h)
	field := g.inv.azimuthDeg
	if !useAzimuth {
		field = g.inv.altitudeDeg
	}

	for i := range pixels {
		d := field[i] - angle
		mask := softEdgeMask(d, halfWidth)
		if !showBarMask {
			mask = 1.0
		}

		checkerVal := g.inv.checker[i]
		if int(flickerPhase)%2 == 1 {
			checkerVal = -checkerVal
		}

		v := 0.5 + 0.5*checkerVal*g.stimulus.Contrast*mask
		pixels[i] = uint8(clamp(v, 0, 1) * 255)
	}

	meta := FrameMeta{
		Direction:   dir,
		FrameIndex:  frameIndex,
		TotalFrames: info.TotalFrames,
		Angle:       angle,
		StartAngle:  info.StartAngle,
		EndAngle:    info.EndAngle,
	}
	return Frame{Width: w, Height: h, Pixels: pixels}, meta, nil
}

// softEdgeMask returns 1 inside the bar, 0 outside, with a cosine-tapered
// transition of width edgeWidthDeg at the bar's edges.
func softEdgeMask(distFromCenterDeg, halfWidthDeg float64) float64 {
	const edgeWidthDeg = 2.0
	d := math.Abs(distFromCenterDeg)
	if d <= halfWidthDeg-edgeWidthDeg {
		return 1.0
	}
	if d >= halfWidthDeg+edgeWidthDeg {
		return 0.0
	}
	frac := (halfWidthDeg + edgeWidthDeg - d) / (2 * edgeWidthDeg)
	return 0.5 - 0.5*math.Cos(frac*math.Pi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BlackFrame renders a single all-zero frame of the generator's configured
// monitor resolution, used for baseline and between-trial display.
func (g *Generator) BlackFrame() Frame {
	w, h := g.monitor.WidthPx, g.monitor.HeightPx
	return Frame{Width: w, Height: h, Pixels: make([]uint8, w*h)}
}

// Device reports the compute device selected for this generator.
func (g *Generator) Device() ComputeDevice { return g.device }
