// Package shmplane implements the three fixed-size shared-memory frame
// planes (stimulus, camera, analysis) the UI reads from: each plane is a
// memory-mapped file at a platform-appropriate temp path, written under a
// per-plane lock, with a small ring-buffer registry of recent frame
// metadata published alongside each write. Mapping uses
// golang.org/x/sys/unix.Mmap/Munmap.
package shmplane

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Kind identifies which of the three named planes this is.
type Kind string

const (
	KindStimulus Kind = "stimulus"
	KindCamera   Kind = "camera"
	KindAnalysis Kind = "analysis"
)

// Sizes per spec: stimulus and camera planes hold one RGBA/gray frame each;
// analysis holds one float32 layer at a time.
const (
	StimulusPlaneSize = 100 * 1024 * 1024
	CameraPlaneSize   = 100 * 1024 * 1024
	AnalysisPlaneSize = 50 * 1024 * 1024
)

// registrySize bounds the ring buffer of recently published frame metadata
// kept per plane (stimulus/camera only; analysis overwrites at offset 0).
const registrySize = 16

// FrameMeta is the metadata record published on the sync channel alongside
// each plane write.
type FrameMeta struct {
	FrameID       string
	TimestampUs   int64
	FrameIndex    int
	Direction     string
	AngleDegrees  float64
	WidthPx       int
	HeightPx      int
	DataSizeBytes int
	OffsetBytes   int
	TotalFrames   int
	StartAngle    float64
	EndAngle      float64
	ShmPath       string
}

// Plane is one memory-mapped shared-memory region.
type Plane struct {
	kind Kind
	path string
	size int

	file *os.File
	data []byte

	mu       sync.Mutex
	registry []FrameMeta
}

// New creates and maps a plane of the given kind at a temp path, sized
// per the spec's per-plane byte budget.
func New(kind Kind) (*Plane, error) {
	var size int
	switch kind {
	case KindStimulus:
		size = StimulusPlaneSize
	case KindCamera:
		size = CameraPlaneSize
	case KindAnalysis:
		size = AnalysisPlaneSize
	default:
		return nil, fmt.Errorf("shmplane: unknown plane kind %q", kind)
	}

	path := filepath.Join(os.TempDir(), fmt.Sprintf("isi-macroscope-%s.shm", kind))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("shmplane: open %q: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shmplane: truncate %q to %d: %w", path, size, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmplane: mmap %q: %w", path, err)
	}

	return &Plane{kind: kind, path: path, size: size, file: f, data: data}, nil
}

// Path returns the plane's shared-memory file path.
func (p *Plane) Path() string { return p.path }

// Close unmaps and removes the plane's backing file.
func (p *Plane) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if err := unix.Munmap(p.data); err != nil {
		firstErr = fmt.Errorf("shmplane: munmap: %w", err)
	}
	if err := p.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shmplane: close: %w", err)
	}
	if err := os.Remove(p.path); err != nil && firstErr == nil && !os.IsNotExist(err) {
		firstErr = fmt.Errorf("shmplane: remove: %w", err)
	}
	return firstErr
}

// WriteFrame writes payload at offset 0 and publishes meta into the
// ring-buffer registry. For the stimulus plane, frame_index and
// total_frames are required and must be positive; an invalid value fails
// the write without touching the mapped region.
func (p *Plane) WriteFrame(payload []byte, meta FrameMeta) (FrameMeta, error) {
	if p.kind == KindStimulus {
		if meta.FrameIndex < 0 || meta.TotalFrames <= 0 {
			return FrameMeta{}, fmt.Errorf("shmplane: stimulus frame requires positive frame_index/total_frames, got %d/%d", meta.FrameIndex, meta.TotalFrames)
		}
	}
	if len(payload) > p.size {
		return FrameMeta{}, fmt.Errorf("shmplane: payload %d bytes exceeds plane size %d", len(payload), p.size)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	copy(p.data, payload)

	meta.FrameID = uuid.New().String()
	meta.TimestampUs = timestampOrNow(meta.TimestampUs)
	meta.DataSizeBytes = len(payload)
	meta.OffsetBytes = 0
	meta.ShmPath = p.path

	if p.kind != KindAnalysis {
		p.registry = append(p.registry, meta)
		if len(p.registry) > registrySize {
			p.registry = p.registry[len(p.registry)-registrySize:]
		}
	}
	return meta, nil
}

func timestampOrNow(ts int64) int64 {
	if ts != 0 {
		return ts
	}
	return time.Now().UnixMicro()
}

// Recent returns the ring-buffer registry of recently published frames,
// oldest first. Empty for the analysis plane, which always overwrites at
// offset 0 rather than keeping history.
func (p *Plane) Recent() []FrameMeta {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]FrameMeta, len(p.registry))
	copy(out, p.registry)
	return out
}

// ReadLatest copies out the payload of the most recently written frame,
// alongside its metadata. ok is false if nothing has been written yet.
func (p *Plane) ReadLatest() (payload []byte, meta FrameMeta, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.registry) == 0 {
		return nil, FrameMeta{}, false
	}
	last := p.registry[len(p.registry)-1]
	payload = make([]byte, last.DataSizeBytes)
	copy(payload, p.data[last.OffsetBytes:last.OffsetBytes+last.DataSizeBytes])
	return payload, last, true
}
