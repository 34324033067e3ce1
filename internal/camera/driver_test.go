package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/isi-macroscope/acquisition-core/internal/config"
	"github.com/isi-macroscope/acquisition-core/internal/ctstim"
	"github.com/isi-macroscope/acquisition-core/internal/stimulus"
	"github.com/isi-macroscope/acquisition-core/internal/synctrack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	n       int
	failAt  int
	hasHW   bool
}

func (f *fakeSource) Capture(ctx context.Context) (Frame, int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.failAt != 0 && f.n == f.failAt {
		return Frame{}, 0, false, errors.New("simulated capture failure")
	}
	return Frame{Width: 2, Height: 2, Channels: 1, Pixels: []byte{1, 2, 3, 4}}, 1000, f.hasHW, nil
}
func (f *fakeSource) Close() error { return nil }

type fakePublisher struct {
	mu            sync.Mutex
	cameraFrames  int
	stimulusFrames int
}

func (p *fakePublisher) PublishCameraFrame(frame Frame, ts int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cameraFrames++
	return nil
}
func (p *fakePublisher) PublishStimulusFrame(frame stimulus.Frame, meta *ctstim.FrameMeta) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stimulusFrames++
	return nil
}

type fakeRecorder struct {
	recording bool
	frames    int
}

func (r *fakeRecorder) IsRecording() bool { return r.recording }
func (r *fakeRecorder) RecordCameraFrame(ts int64, frame []byte) error {
	r.frames++
	return nil
}
func (r *fakeRecorder) RecordStimulusEvent(ts int64, meta *ctstim.FrameMeta) error { return nil }
func (r *fakeRecorder) SetAnatomical(image []byte)                                {}

func newTestDriver(t *testing.T, src Source, pub FramePublisher) *Driver {
	cm := config.NewConfigManager(nil)
	mgr := stimulus.NewManager(cm)
	ctrl := ctstim.New(mgr)
	tracker := synctrack.New()
	tracker.Enable()
	return NewDriver(src, ctrl, tracker, pub, nil)
}

func TestDriver_PublishesEachCapturedFrame(t *testing.T) {
	src := &fakeSource{}
	pub := &fakePublisher{}
	d := newTestDriver(t, src, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_ = d.Run(ctx)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Greater(t, pub.cameraFrames, 0)
}

func TestDriver_FatalOnCaptureErrorWhileRecording(t *testing.T) {
	src := &fakeSource{failAt: 1}
	pub := &fakePublisher{}
	d := newTestDriver(t, src, pub)
	d.SetRecorder(&fakeRecorder{recording: true})

	err := d.Run(context.Background())
	assert.Error(t, err)
}

func TestDriver_TimestampSourceSelectedOnFirstFrame(t *testing.T) {
	src := &fakeSource{hasHW: true}
	pub := &fakePublisher{}
	d := newTestDriver(t, src, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	assert.True(t, d.HardwareTimestamps())
	assert.Equal(t, "hardware", d.TimestampSourceLabel())
}
