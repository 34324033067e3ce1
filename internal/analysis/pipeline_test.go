package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticFrames(width, height, n, numCycles int, phaseAt func(x, y int) float64) DirectionFrames {
	df := DirectionFrames{Width: width, Height: height}
	for t := 0; t < n; t++ {
		frame := make([]float64, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				theta := 2*math.Pi*float64(numCycles)*float64(t)/float64(n) + phaseAt(x, y)
				frame[y*width+x] = math.Cos(theta)
			}
		}
		df.Frames = append(df.Frames, frame)
		df.AnglesDeg = append(df.AnglesDeg, 0)
		df.TimestampsUs = append(df.TimestampsUs, int64(t))
	}
	return df
}

func TestFFTPhaseMagnitude_RecoversInjectedPhase(t *testing.T) {
	width, height, n, numCycles := 4, 3, 120, 2
	phi := func(x, y int) float64 { return float64(x) * 0.3 }

	df := syntheticFrames(width, height, n, numCycles, phi)
	result := fftPhaseMagnitude(df, numCycles)

	for x := 0; x < width; x++ {
		got := result.Phase[x]
		want := wrapPhase(-phi(x, 0))
		diff := math.Abs(wrapPhase(got - want))
		assert.Less(t, diff, 0.2, "pixel x=%d: got %v want %v", x, got, want)
	}
}

func TestVisualFieldSign_PositiveForAlignedGradients(t *testing.T) {
	az := newFieldMap(5, 5)
	el := newFieldMap(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			az.set(x, y, float64(x))
			el.set(x, y, float64(y))
		}
	}
	azGrad := centralDifferenceGradients(az)
	elGrad := centralDifferenceGradients(el)
	sign := visualFieldSign(azGrad, elGrad)

	for y := 1; y < 4; y++ {
		for x := 1; x < 4; x++ {
			assert.Equal(t, 1.0, sign.at(x, y))
		}
	}
}

func TestVisualFieldSign_NegativeForOpposedGradients(t *testing.T) {
	az := newFieldMap(5, 5)
	el := newFieldMap(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			az.set(x, y, -float64(x))
			el.set(x, y, float64(y))
		}
	}
	azGrad := centralDifferenceGradients(az)
	elGrad := centralDifferenceGradients(el)
	sign := visualFieldSign(azGrad, elGrad)

	for y := 1; y < 4; y++ {
		for x := 1; x < 4; x++ {
			assert.Equal(t, -1.0, sign.at(x, y))
		}
	}
}

func TestSegmentSignMap_DiscardsSmallComponents(t *testing.T) {
	sign := newFieldMap(10, 10)
	for y := 2; y < 8; y++ {
		for x := 2; x < 8; x++ {
			sign.set(x, y, 1)
		}
	}
	sign.set(0, 0, -1) // isolated single pixel, should be discarded

	seg := segmentSignMap(sign, 5)
	assert.Equal(t, 1, seg.NumAreas)
	assert.Equal(t, 0.0, seg.AreaMap.at(0, 0))
	assert.Equal(t, 1.0, seg.AreaMap.at(4, 4))
}

func TestSynthesizeBidirectional_UnwrapsBeforeAveraging(t *testing.T) {
	fwd := PixelPhaseMagnitude{Width: 1, Height: 1, Phase: []float64{3.0}, Magnitude: []float64{1}}
	rev := PixelPhaseMagnitude{Width: 1, Height: 1, Phase: []float64{-3.0}, Magnitude: []float64{1}}

	out := synthesizeBidirectional(fwd, rev, 360)

	// Naively averaging 3.0 and -3.0 collapses to 0; the pair actually
	// straddles the +-pi boundary and should average to close to +-pi.
	wantRad := math.Pi
	gotRad := out.Values[0] / (360 / 2) * math.Pi
	assert.Less(t, math.Abs(math.Abs(gotRad)-wantRad), 0.2)
}

func TestHemodynamicShift_DropsLeadingFrames(t *testing.T) {
	df := DirectionFrames{
		Width: 1, Height: 1,
		Frames:       [][]float64{{1}, {2}, {3}, {4}, {5}},
		AnglesDeg:    []float64{10, 20, 30, 40, 50},
		TimestampsUs: []int64{0, 1, 2, 3, 4},
	}
	shifted := hemodynamicShift(df, 1.0, 2.0) // shift = round(1.0*2.0) = 2

	require.Len(t, shifted.Frames, 3)
	assert.Equal(t, []float64{3}, shifted.Frames[0])
	assert.Equal(t, []float64{10, 20, 30}, shifted.AnglesDeg)
}
