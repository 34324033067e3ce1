package modes

import (
	"fmt"
	"sync"

	"github.com/isi-macroscope/acquisition-core/internal/acqstate"
	"github.com/isi-macroscope/acquisition-core/internal/sessionio"
)

// SessionData is the lightweight summary get_session_data returns: it must
// never read frame arrays, only counts and metadata.
type SessionData struct {
	Direction   string
	FrameCount  int
	Width       int
	Height      int
}

// PlaybackController holds the currently opened session and, lazily, one
// open per-direction camera file handle at a time.
type PlaybackController struct {
	mu          sync.Mutex
	state       *acqstate.Coordinator
	sessionDir  string
	meta        sessionio.Metadata
	openDir     string
	openCamera  *sessionio.CameraData
}

// NewPlaybackController creates a PlaybackController.
func NewPlaybackController(state *acqstate.Coordinator) *PlaybackController {
	return &PlaybackController{state: state}
}

// Activate loads metadata.json for sessionDir and validates the session
// transition.
func (p *PlaybackController) Activate(sessionDir string) error {
	meta, err := sessionio.ValidateSession(sessionDir)
	if err != nil {
		return err
	}
	if err := p.state.Transition(acqstate.StatePlayback); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionDir = sessionDir
	p.meta = meta
	p.openDir = ""
	p.openCamera = nil
	return nil
}

// GetSessionData returns frame_count and dimensions for direction from
// metadata.json's recorded shape alone — it never opens the direction's
// camera file, so it never touches a frame array.
func (p *PlaybackController) GetSessionData(direction string) (SessionData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	shape, ok := p.meta.DirectionShapes[direction]
	if !ok {
		return SessionData{}, fmt.Errorf("modes: no session data recorded for direction %q", direction)
	}
	return SessionData{
		Direction:  direction,
		FrameCount: shape.FrameCount,
		Width:      shape.Width,
		Height:     shape.Height,
	}, nil
}

// GetPlaybackFrame returns exactly one frame of direction at index,
// converting 3-channel frames to grayscale via the luminance formula. The
// first call for a direction decodes that direction's whole camera file and
// keeps it in memory until another direction is opened or Deactivate runs.
func (p *PlaybackController) GetPlaybackFrame(direction string, index int) ([]byte, error) {
	cam, err := p.openDirection(direction)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(cam.Frames) {
		return nil, fmt.Errorf("modes: frame index %d out of range [0,%d)", index, len(cam.Frames))
	}

	raw := cam.Frames[index]
	if cam.Channels <= 1 {
		return raw, nil
	}

	out := make([]byte, len(raw)/cam.Channels)
	for i := range out {
		base := i * cam.Channels
		r, g, b := float64(raw[base]), float64(raw[base+1]), float64(raw[base+2])
		out[i] = uint8(0.299*r + 0.587*g + 0.114*b)
	}
	return out, nil
}

// openDirection opens direction D's camera file handle, closing any
// other currently open direction first (one at a time).
func (p *PlaybackController) openDirection(direction string) (*sessionio.CameraData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openDir == direction && p.openCamera != nil {
		return p.openCamera, nil
	}

	l := sessionio.Layout{Dir: p.sessionDir, Direction: direction}
	cam, err := sessionio.ReadCameraFile(l.CameraPath())
	if err != nil {
		return nil, err
	}
	p.openDir = direction
	p.openCamera = &cam
	return p.openCamera, nil
}

// Deactivate closes any open handle.
func (p *PlaybackController) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openDir = ""
	p.openCamera = nil
	p.state.Transition(acqstate.StateIdle)
}
