//go:build purego || js

package colourmag

import (
	"math"
	"slices"
)

// Mat is a pure Go 2D float32 matrix holding pixel values in ADU.
type Mat struct {
	data []float32
	rows int
	cols int
}

func NewMat() Mat { return Mat{} }

// NewMatWithSize returns a zero-filled rows x cols matrix.
func NewMatWithSize(rows, cols int) Mat {
	return Mat{
		data: make([]float32, rows*cols),
		rows: rows,
		cols: cols,
	}
}

func (m Mat) Rows() int   { return m.rows }
func (m Mat) Cols() int   { return m.cols }
func (m Mat) Empty() bool { return m.data == nil || m.rows == 0 || m.cols == 0 }

func (m Mat) Clone() Mat {
	newData := make([]float32, len(m.data))
	copy(newData, m.data)
	return Mat{data: newData, rows: m.rows, cols: m.cols}
}

func (m *Mat) Close() {
	m.data = nil
	m.rows = 0
	m.cols = 0
}

// DataFloat32 returns the row-major backing slice.
func (m Mat) DataFloat32() []float32 {
	return m.data
}

// reshape reallocates m unless it already has the given size.
func (m *Mat) reshape(rows, cols int) {
	if m.rows != rows || m.cols != cols || m.data == nil {
		*m = NewMatWithSize(rows, cols)
	}
}

func CopyMatTo(src Mat, dst *Mat) {
	dst.reshape(src.rows, src.cols)
	copy(dst.data, src.data)
}

func reflectIndex(idx, size int) int {
	if size == 1 {
		return 0
	}
	if idx < 0 {
		idx = -idx
	}
	for idx >= size {
		idx = 2*size - 2 - idx
		if idx < 0 {
			idx = -idx
		}
	}
	return idx
}

func sepFilter2DReflect(src Mat, dst *Mat, kernelX, kernelY Mat) {
	rows, cols := src.rows, src.cols
	srcData := src.DataFloat32()
	kx := kernelX.DataFloat32()
	ky := kernelY.DataFloat32()
	kxLen := kernelX.rows * kernelX.cols
	kyLen := kernelY.rows * kernelY.cols
	kxHalf := kxLen / 2
	kyHalf := kyLen / 2

	temp := make([]float32, rows*cols)

	for r := 0; r < rows; r++ {
		rowOff := r * cols
		for c := 0; c < cols; c++ {
			var sum float32
			if c >= kxHalf && c < cols-kxHalf {
				base := rowOff + c - kxHalf
				for k := 0; k < kxLen; k++ {
					sum += srcData[base+k] * kx[k]
				}
			} else {
				for k := 0; k < kxLen; k++ {
					sum += srcData[rowOff+reflectIndex(c+k-kxHalf, cols)] * kx[k]
				}
			}
			temp[rowOff+c] = sum
		}
	}

	dst.reshape(rows, cols)
	dstData := dst.DataFloat32()
	rowOffs := make([]int, kyLen)
	for r := 0; r < rows; r++ {
		for k := 0; k < kyLen; k++ {
			rowOffs[k] = reflectIndex(r+k-kyHalf, rows) * cols
		}
		dstOff := r * cols
		for c := 0; c < cols; c++ {
			var sum float32
			for k := 0; k < kyLen; k++ {
				sum += temp[rowOffs[k]+c] * ky[k]
			}
			dstData[dstOff+c] = sum
		}
	}
}

func getGaussianKernel1D(size int, sigma float64) Mat {
	m := NewMatWithSize(size, 1)
	data := m.DataFloat32()
	half := size / 2
	sum := 0.0
	vals := make([]float64, size)
	for i := 0; i < size; i++ {
		x := float64(i - half)
		vals[i] = math.Exp(-x * x / (2 * sigma * sigma))
		sum += vals[i]
	}
	for i := range vals {
		data[i] = float32(vals[i] / sum)
	}
	return m
}

// medianBlur applies a 3x3 median filter with replicated borders.
func medianBlur(src Mat, dst *Mat, ksize int) {
	rows, cols := src.rows, src.cols
	srcData := src.DataFloat32()
	result := make([]float32, rows*cols)
	half := ksize / 2
	neighbors := make([]float32, ksize*ksize)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			idx := 0
			for dr := -half; dr <= half; dr++ {
				rr := clampInt(r+dr, 0, rows-1)
				for dc := -half; dc <= half; dc++ {
					cc := clampInt(c+dc, 0, cols-1)
					neighbors[idx] = srcData[rr*cols+cc]
					idx++
				}
			}
			slices.Sort(neighbors[:idx])
			result[r*cols+c] = neighbors[idx/2]
		}
	}

	dst.reshape(rows, cols)
	copy(dst.DataFloat32(), result)
}

// mapPixels writes f(a[i], b[i]) into dst, sized like a.
func mapPixels(a, b Mat, dst *Mat, f func(x, y float32) float32) {
	ad, bd := a.DataFloat32(), b.DataFloat32()
	dst.reshape(a.rows, a.cols)
	dd := dst.DataFloat32()
	for i := range dd {
		var y float32
		if bd != nil {
			y = bd[i]
		}
		dd[i] = f(ad[i], y)
	}
}

func absDiff(a, b Mat, dst *Mat) {
	mapPixels(a, b, dst, func(x, y float32) float32 {
		if x < y {
			return y - x
		}
		return x - y
	})
}

func thresholdBinary(src Mat, dst *Mat, thresh, maxval float32) {
	mapPixels(src, Mat{}, dst, func(x, _ float32) float32 {
		if x > thresh {
			return maxval
		}
		return 0
	})
}

func countNonZero(src Mat) int {
	count := 0
	for _, v := range src.DataFloat32() {
		if v != 0 {
			count++
		}
	}
	return count
}

func matCopyToWithMask(src Mat, dst *Mat, mask Mat) {
	sd, dd, md := src.DataFloat32(), dst.DataFloat32(), mask.DataFloat32()
	for i := range md {
		if md[i] != 0 {
			dd[i] = sd[i]
		}
	}
}

// imWriteMat is a no-op without OpenCV.
func imWriteMat(_ string, _ Mat) {}
