/*
Extracted from HocusFocus plugin by George Hilios.
Original Copyright © 2021 George Hilios <ghilios+NINA@googlemail.com>
Licensed under Mozilla Public License 2.0.
Ported to Go.
*/

package colourmag

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// matFromFloat32 copies a row-major pixel buffer into a new Mat.
func matFromFloat32(data []float32, rows, cols int) Mat {
	m := NewMatWithSize(rows, cols)
	copy(m.DataFloat32(), data)
	return m
}

// matFromFloat64 copies a row-major float64 buffer into a new Mat.
func matFromFloat64(data []float64, rows, cols int) Mat {
	m := NewMatWithSize(rows, cols)
	dest := m.DataFloat32()
	for i, v := range data {
		dest[i] = float32(v)
	}
	return m
}

func sameShape(a, b Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}

// gaussianKernelSize returns the odd kernel width covering +-3 sigma.
func gaussianKernelSize(sigma float64) int {
	size := 2*int(math.Ceil(3*sigma)) + 1
	if size < 3 {
		size = 3
	}
	return size
}

// ConvolveGaussian applies a separated Gaussian convolution with the given sigma.
func ConvolveGaussian(src, dst *Mat, sigma float64) {
	if sigma <= 0 {
		panic("sigma must be positive")
	}
	kernel := getGaussianKernel1D(gaussianKernelSize(sigma), sigma)
	defer kernel.Close()
	sepFilter2DReflect(*src, dst, kernel, kernel)
}

// SigmaClippedStats estimates the background of img by repeatedly rejecting
// pixels further than kappa standard deviations from the median. Iteration
// stops when no pixel is rejected or after maxIterations passes. Non-finite
// pixels are ignored.
func SigmaClippedStats(img Mat, kappa float64, maxIterations int) FrameStats {
	data := img.DataFloat32()
	values := make([]float64, 0, len(data))
	for _, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return FrameStats{}
	}

	for i := 0; i < maxIterations; i++ {
		med := medianFloat64(values)
		_, std := stat.PopMeanStdDev(values, nil)
		if std == 0 {
			break
		}
		lo, hi := med-kappa*std, med+kappa*std
		kept := make([]float64, 0, len(values))
		for _, v := range values {
			if v >= lo && v <= hi {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(values) || len(kept) == 0 {
			break
		}
		values = kept
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	return FrameStats{
		Mean:   mean,
		Median: medianFloat64(values),
		StdDev: std,
	}
}

func medianFloat64(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// ClampInPlace clamps mat values to [min, max].
func ClampInPlace(src *Mat, min, max float32) {
	data := src.DataFloat32()
	n := src.Rows() * src.Cols()
	for i := 0; i < n; i++ {
		if data[i] < min {
			data[i] = min
		} else if data[i] > max {
			data[i] = max
		}
	}
}

// hotpixelFilter replaces pixels that deviate from their 3x3 median by more
// than threshold and returns how many were replaced.
func hotpixelFilter(m *Mat, threshold float64) int64 {
	blurred := NewMat()
	defer blurred.Close()
	diff := NewMat()
	defer diff.Close()
	mask := NewMat()
	defer mask.Close()

	medianBlur(*m, &blurred, 3)
	absDiff(*m, blurred, &diff)
	thresholdBinary(diff, &mask, float32(threshold), 1.0)
	numHotpixels := int64(countNonZero(mask))
	matCopyToWithMask(blurred, m, mask)
	return numHotpixels
}
