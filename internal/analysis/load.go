// Package analysis implements the Fourier retinotopic analysis pipeline:
// a pure, deterministic, stateless-across-calls transform from a recorded
// session directory to per-direction phase/magnitude maps, visual field
// sign, boundary segmentation, and area labeling.
package analysis

import (
	"fmt"
	"sort"

	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
)

// DirectionFrames holds one direction's correlated per-pixel grayscale
// frame stack and matched stimulus angles, after Correlate.
type DirectionFrames struct {
	Width, Height int
	Frames        [][]float64 // len == len(AnglesDeg); each len == Width*Height
	AnglesDeg     []float64
	TimestampsUs  []int64
}

// LoadedSession is the validated, per-direction raw session data.
type LoadedSession struct {
	Meta       sessionio.Metadata
	Directions map[string]rawDirection
}

type rawDirection struct {
	width, height int
	frames        [][]byte
	channels      int
	timestamps    []int64
	angles        []float64
	events        []sessionio.Event
}

// maxCorrelationDeltaUs is the 50ms rejection threshold for correlating a
// camera frame to its nearest stimulus event by timestamp.
const maxCorrelationDeltaUs = 50_000

// LoadAndValidate opens metadata.json and, for each listed direction,
// verifies the three per-direction files exist and their dataset shapes
// are consistent, failing with a descriptive error on any violation.
func LoadAndValidate(sessionDir string) (*LoadedSession, error) {
	meta, err := sessionio.ValidateSession(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("analysis: session validation failed: %w", err)
	}

	session := &LoadedSession{Meta: meta, Directions: make(map[string]rawDirection)}
	for _, dir := range meta.Directions {
		l := sessionio.Layout{Dir: sessionDir, Direction: dir}

		cam, err := sessionio.ReadCameraFile(l.CameraPath())
		if err != nil {
			return nil, fmt.Errorf("analysis: direction %s: %w", dir, err)
		}
		stim, err := sessionio.ReadStimulusFile(l.StimulusPath())
		if err != nil {
			return nil, fmt.Errorf("analysis: direction %s: %w", dir, err)
		}
		events, err := sessionio.ReadEvents(l.EventsPath())
		if err != nil {
			return nil, fmt.Errorf("analysis: direction %s: %w", dir, err)
		}

		session.Directions[dir] = rawDirection{
			width: cam.Width, height: cam.Height, channels: cam.Channels,
			frames: cam.Frames, timestamps: cam.TimestampsUs,
			angles: stim.AnglesDeg, events: events,
		}
	}
	return session, nil
}

// Correlate matches each camera frame in direction dir to its nearest
// stimulus event by timestamp_us, rejecting pairings with a gap of 50ms or
// more, and converts multi-channel frames to float64 grayscale.
func (s *LoadedSession) Correlate(dir string) (DirectionFrames, error) {
	raw, ok := s.Directions[dir]
	if !ok {
		return DirectionFrames{}, fmt.Errorf("analysis: unknown direction %q", dir)
	}

	sortedEvents := append([]sessionio.Event(nil), raw.events...)
	sort.Slice(sortedEvents, func(i, j int) bool { return sortedEvents[i].TimestampUs < sortedEvents[j].TimestampUs })

	out := DirectionFrames{Width: raw.width, Height: raw.height}
	for i, frameBytes := range raw.frames {
		ts := raw.timestamps[i]
		ev, delta := nearestEvent(sortedEvents, ts)
		if delta >= maxCorrelationDeltaUs {
			continue
		}

		out.Frames = append(out.Frames, toGrayscale(frameBytes, raw.channels))
		out.AnglesDeg = append(out.AnglesDeg, ev.AngleDegrees)
		out.TimestampsUs = append(out.TimestampsUs, ts)
	}
	return out, nil
}

func nearestEvent(sorted []sessionio.Event, ts int64) (sessionio.Event, int64) {
	if len(sorted) == 0 {
		return sessionio.Event{}, 1 << 62
	}
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].TimestampUs >= ts })

	best := sorted[0]
	bestDelta := absInt64(best.TimestampUs - ts)
	for _, cand := range []int{idx - 1, idx} {
		if cand < 0 || cand >= len(sorted) {
			continue
		}
		d := absInt64(sorted[cand].TimestampUs - ts)
		if d < bestDelta {
			best, bestDelta = sorted[cand], d
		}
	}
	return best, bestDelta
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func toGrayscale(raw []byte, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(raw))
		for i, b := range raw {
			out[i] = float64(b)
		}
		return out
	}
	out := make([]float64, len(raw)/channels)
	for i := range out {
		base := i * channels
		r, g, b := float64(raw[base]), float64(raw[base+1]), float64(raw[base+2])
		out[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return out
}
