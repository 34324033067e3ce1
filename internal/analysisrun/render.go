package analysisrun

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/palette/moreland"

	"github.com/isi-macroscope/acquisition-core/internal/analysis"
)

// LayerImage is a rendered layer ready for analysis_layer_ready publication.
type LayerImage struct {
	PNGBytes      []byte
	Width, Height int
}

// renderDiverging renders a field through a diverging palette (sign map),
// where zero is a fixed neutral center regardless of the data's min/max.
func renderDiverging(f analysis.FieldMap) (LayerImage, error) {
	pal := moreland.SmoothGreenRed()
	bound := maxAbs(f.Values)
	if bound == 0 {
		bound = 1
	}
	if err := pal.SetMin(-bound); err != nil {
		return LayerImage{}, err
	}
	if err := pal.SetMax(bound); err != nil {
		return LayerImage{}, err
	}
	return rasterize(f, pal.At)
}

// renderSequential renders a field through a sequential palette (magnitude,
// anatomical-like layers), scaled to the field's own observed min/max.
func renderSequential(f analysis.FieldMap) (LayerImage, error) {
	pal := moreland.ExtendedBlackBody()
	lo, hi := floats.Min(f.Values), floats.Max(f.Values)
	if hi == lo {
		hi = lo + 1
	}
	if err := pal.SetMin(lo); err != nil {
		return LayerImage{}, err
	}
	if err := pal.SetMax(hi); err != nil {
		return LayerImage{}, err
	}
	return rasterize(f, pal.At)
}

// renderHue renders a field (azimuth or elevation, in degrees) through a
// hue rotation: no pack library offers a circular colormap, so this is
// built directly on image/color.HSV-style math, scaled to the field's own
// observed range.
func renderHue(f analysis.FieldMap) (LayerImage, error) {
	lo, hi := floats.Min(f.Values), floats.Max(f.Values)
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return rasterize(f, func(v float64) (color.Color, error) {
		hue := (v - lo) / span
		r, g, b := hsvToRGB(hue, 0.85, 1.0)
		return color.RGBA{R: r, G: g, B: b, A: 255}, nil
	})
}

// renderGray renders a field as 8-bit grayscale, used for the boundary
// layer.
func renderGray(f analysis.FieldMap) (LayerImage, error) {
	lo, hi := floats.Min(f.Values), floats.Max(f.Values)
	span := hi - lo
	if span == 0 {
		span = 1
	}
	return rasterize(f, func(v float64) (color.Color, error) {
		g := uint8(clamp01((v-lo)/span) * 255)
		return color.Gray{Y: g}, nil
	})
}

func rasterize(f analysis.FieldMap, colorAt func(float64) (color.Color, error)) (LayerImage, error) {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c, err := colorAt(f.Values[y*f.Width+x])
			if err != nil {
				return LayerImage{}, err
			}
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return LayerImage{}, err
	}
	return LayerImage{PNGBytes: buf.Bytes(), Width: f.Width, Height: f.Height}, nil
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func hsvToRGB(h, s, v float64) (r, g, b uint8) {
	h = h - math.Floor(h)
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var rf, gf, bf float64
	switch i % 6 {
	case 0:
		rf, gf, bf = v, t, p
	case 1:
		rf, gf, bf = q, v, p
	case 2:
		rf, gf, bf = p, v, t
	case 3:
		rf, gf, bf = p, q, v
	case 4:
		rf, gf, bf = t, p, v
	default:
		rf, gf, bf = v, p, q
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}
