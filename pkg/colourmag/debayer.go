package colourmag

import (
	"fmt"
	"strings"
)

// DebayerLuminance performs bilinear interpolation on a raw Bayer-pattern
// image and returns a luminance channel: (R + G + B) / 3 per pixel.
//
// RGGB layout (row-major, 0-indexed):
//
//	(even row, even col) = R
//	(even row, odd  col) = G  (Gr)
//	(odd  row, even col) = G  (Gb)
//	(odd  row, odd  col) = B
//
// The luminance does not depend on which of the two non-green sites is red,
// so BGGR is handled like RGGB and GRBG/GBRG as the same layout shifted by
// one column. Edge pixels use clamped (replicated) neighbor lookups.
func DebayerLuminance(data []float32, width, height int, pattern string) ([]float32, error) {
	var colShift int
	switch strings.ToUpper(strings.TrimSpace(pattern)) {
	case "", "RGGB", "BGGR":
		colShift = 0
	case "GRBG", "GBRG":
		colShift = 1
	default:
		return nil, fmt.Errorf("unsupported bayer pattern %q", pattern)
	}

	out := make([]float32, width*height)
	px := func(x, y int) float64 {
		return float64(data[clampInt(y, 0, height-1)*width+clampInt(x, 0, width-1)])
	}

	for y := 0; y < height; y++ {
		evenRow := y%2 == 0
		for x := 0; x < width; x++ {
			evenCol := (x+colShift)%2 == 0
			var r, g, b float64

			switch {
			case evenRow && evenCol:
				r = px(x, y)
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				b = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4

			case evenRow && !evenCol:
				r = (px(x-1, y) + px(x+1, y)) / 2
				g = px(x, y)
				b = (px(x, y-1) + px(x, y+1)) / 2

			case !evenRow && evenCol:
				r = (px(x, y-1) + px(x, y+1)) / 2
				g = px(x, y)
				b = (px(x-1, y) + px(x+1, y)) / 2

			default:
				r = (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
				g = (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
				b = px(x, y)
			}

			out[y*width+x] = float32((r + g + b) / 3)
		}
	}

	return out, nil
}

// debayerMat collapses a Bayer mosaic Mat to luminance in ADU.
func debayerMat(m Mat, pattern string) (Mat, error) {
	lum, err := DebayerLuminance(m.DataFloat32(), m.Cols(), m.Rows(), pattern)
	if err != nil {
		return Mat{}, err
	}
	return matFromFloat32(lum, m.Rows(), m.Cols()), nil
}
