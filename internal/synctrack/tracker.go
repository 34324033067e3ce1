// Package synctrack implements the bounded ring buffer that correlates
// camera frame timestamps with stimulus frame timestamps and reports
// rolling-window synchronization statistics.
package synctrack

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// MaxEntries bounds the ring buffer; oldest entries are dropped on overflow.
const MaxEntries = 100000

// RejectThresholdMs is the maximum tolerated |camera_ts - stimulus_ts|
// before a sample is rejected rather than retained.
const RejectThresholdMs = 100.0

const histogramBins = 50

// Record is one accepted (camera_ts, stimulus_ts) correlation sample.
type Record struct {
	CameraTimestampUs   int64
	StimulusTimestampUs int64
	DiffMs              float64
}

// Stats summarizes a window of Records.
type Stats struct {
	Count       int
	MeanDiffMs  float64
	StdDiffMs   float64
	MinDiffMs   float64
	MaxDiffMs   float64
	Histogram   [histogramBins]int
	BinEdges    [histogramBins + 1]float64
}

// Tracker is the thread-safe synchronization tracker of acquisition spec
// section 4.2. It is a no-op, discarding every add, until Enable is called.
type Tracker struct {
	mu      sync.RWMutex
	enabled bool
	entries []Record
}

// New creates a disabled tracker; call Enable to begin accepting samples.
func New() *Tracker {
	return &Tracker{}
}

// Enable starts accepting samples via Add.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = true
}

// Disable stops accepting samples; existing entries are retained until Clear.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

// Clear discards all retained entries.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// Add records a (cameraTs, stimulusTs) pair, both in microseconds. A pair
// whose absolute difference is 100ms or more is rejected and not retained.
func (t *Tracker) Add(cameraTs, stimulusTs int64) (accepted bool) {
	diffMs := math.Abs(float64(cameraTs-stimulusTs)) / 1000.0
	if diffMs >= RejectThresholdMs {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return false
	}

	t.entries = append(t.entries, Record{
		CameraTimestampUs:   cameraTs,
		StimulusTimestampUs: stimulusTs,
		DiffMs:              diffMs,
	})
	if len(t.entries) > MaxEntries {
		drop := len(t.entries) - MaxEntries
		t.entries = t.entries[drop:]
	}
	return true
}

// Recent returns entries whose camera timestamp falls within windowSeconds
// of the most recently added entry's camera timestamp — not wall-clock now,
// so the window freezes while the tracker is idle between trials.
func (t *Tracker) Recent(windowSeconds float64) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recentLocked(windowSeconds)
}

func (t *Tracker) recentLocked(windowSeconds float64) []Record {
	if len(t.entries) == 0 {
		return nil
	}
	anchor := t.entries[len(t.entries)-1].CameraTimestampUs
	windowUs := int64(windowSeconds * 1e6)
	cutoff := anchor - windowUs

	var out []Record
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].CameraTimestampUs < cutoff {
			break
		}
		out = append(out, t.entries[i])
	}
	// restore chronological order
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// StatsFor computes summary statistics over Recent(windowSeconds).
func (t *Tracker) StatsFor(windowSeconds float64) Stats {
	t.mu.RLock()
	recent := t.recentLocked(windowSeconds)
	t.mu.RUnlock()
	return computeStats(recent)
}

func computeStats(recent []Record) Stats {
	s := Stats{Count: len(recent)}
	if len(recent) == 0 {
		return s
	}

	diffs := make([]float64, len(recent))
	minD, maxD := math.Inf(1), math.Inf(-1)
	for i, r := range recent {
		diffs[i] = r.DiffMs
		if r.DiffMs < minD {
			minD = r.DiffMs
		}
		if r.DiffMs > maxD {
			maxD = r.DiffMs
		}
	}

	s.MeanDiffMs, s.StdDiffMs = stat.MeanStdDev(diffs, nil)
	s.MinDiffMs = minD
	s.MaxDiffMs = maxD

	if maxD == minD {
		maxD = minD + 1
	}
	binWidth := (maxD - minD) / float64(histogramBins)
	for i := 0; i <= histogramBins; i++ {
		s.BinEdges[i] = minD + float64(i)*binWidth
	}
	for _, d := range diffs {
		idx := int((d - minD) / binWidth)
		if idx >= histogramBins {
			idx = histogramBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		s.Histogram[idx]++
	}
	return s
}
