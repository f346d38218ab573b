package colourmag

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DisplayArray subtracts the median background, clamps negatives to zero and
// applies a logarithmic stretch into 16-bit grey.
func DisplayArray(master Mat, stats FrameStats) *image.Gray16 {
	width, height := master.Cols(), master.Rows()
	out := image.NewGray16(image.Rect(0, 0, width, height))

	work := master.Clone()
	defer work.Close()
	data := work.DataFloat32()
	for i := range data {
		data[i] -= float32(stats.Median)
	}
	ClampInPlace(&work, 0, math.MaxFloat32)

	vals := make([]float64, width*height)
	for i, v := range data {
		if !math.IsNaN(float64(v)) {
			vals[i] = float64(v)
		}
	}
	if len(vals) == 0 {
		return out
	}
	peak := floats.Max(vals)
	if peak <= 0 {
		return out
	}
	norm := math.Log1p(peak)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			s := math.Log1p(vals[y*width+x]) / norm
			out.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(s * 65535))})
		}
	}
	return out
}
