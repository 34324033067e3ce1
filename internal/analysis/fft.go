package analysis

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/isi-macroscope/acquisition-core/internal/camera"
)

// PixelPhaseMagnitude holds, per pixel, the phase (radians, wrapped to
// (-pi, pi]) and magnitude of the Fourier component at the stimulus
// frequency.
type PixelPhaseMagnitude struct {
	Width, Height int
	Phase         []float64
	Magnitude     []float64
}

// hemodynamicShift drops the first shiftSamples frames and timestamps and
// the last shiftSamples angles, compensating for the hemodynamic response
// delay: the signal at frame i actually reflects the stimulus angle at
// frame i-shiftSamples, so frame i+shiftSamples is paired with angle i.
func hemodynamicShift(df DirectionFrames, delaySec, fps float64) DirectionFrames {
	shift := int(math.Round(delaySec * fps))
	if shift <= 0 || shift >= len(df.Frames) {
		return df
	}
	return DirectionFrames{
		Width: df.Width, Height: df.Height,
		Frames:       df.Frames[shift:],
		AnglesDeg:    df.AnglesDeg[:len(df.AnglesDeg)-shift],
		TimestampsUs: df.TimestampsUs[shift:],
	}
}

// fftPhaseMagnitude computes, for every pixel, the complex Fourier
// coefficient at the stimulus frequency f* = numCycles/N cycles/frame
// across the frame stack, and returns its phase and magnitude.
//
// Computing the DFT from first principles at a single target bin would be
// cheaper than a full FFT, but gonum's fourier.FFT gives every bin for
// negligible extra pixel-loop cost and keeps the dependency doing the
// actual transform work.
func fftPhaseMagnitude(df DirectionFrames, numCycles int) PixelPhaseMagnitude {
	n := len(df.Frames)
	numPixels := df.Width * df.Height
	out := PixelPhaseMagnitude{
		Width: df.Width, Height: df.Height,
		Phase:     make([]float64, numPixels),
		Magnitude: make([]float64, numPixels),
	}
	if n == 0 || numPixels == 0 {
		return out
	}

	targetBin := numCycles
	if targetBin >= n {
		targetBin = n - 1
	}

	// Each pixel's FFT is independent of every other; chunks are handed to
	// a bounded worker pool so wide fields of view don't all race onto
	// every CPU at once. Each worker gets its own fourier.FFT plan since
	// Coefficients reuses internal scratch state across calls.
	workers := runtime.NumCPU()
	if workers > numPixels {
		workers = numPixels
	}
	if workers < 1 {
		workers = 1
	}

	pool := camera.NewBoundedWorkerPool(workers, 30*time.Second, nil)
	ctx := context.Background()
	_ = pool.Start(ctx)
	defer pool.Stop(ctx)

	chunkSize := (numPixels + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < numPixels; start += chunkSize {
		end := start + chunkSize
		if end > numPixels {
			end = numPixels
		}
		wg.Add(1)
		start, end := start, end
		if err := pool.Submit(ctx, func(context.Context) {
			defer wg.Done()
			fft := fourier.NewFFT(n)
			seq := make([]float64, n)
			for px := start; px < end; px++ {
				for t := 0; t < n; t++ {
					seq[t] = df.Frames[t][px]
				}
				coeffs := fft.Coefficients(nil, seq)
				c := coeffs[targetBin]
				// Response phase is the negative of the DFT argument: a
				// stimulus phase offset phi in cos(wt+phi) delays the
				// measured response by phi, which the retinotopic mapping
				// convention reports as -phi.
				out.Phase[px] = math.Atan2(-imag(c), real(c))
				out.Magnitude[px] = math.Hypot(real(c), imag(c))
			}
		}); err != nil {
			wg.Done()
		}
	}
	wg.Wait()
	return out
}

// wrapPhase rewraps a radian angle to (-pi, pi].
func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p <= -math.Pi {
		p += 2 * math.Pi
	}
	return p
}
