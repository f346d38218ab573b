package colourmag

import (
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// RegistrationOptions tunes offset estimation.
type RegistrationOptions struct {
	// Clip zeroes background-subtracted pixels below Clip standard
	// deviations before correlating.
	Clip float64
	// MaxOffset bounds the searched displacement in pixels. Zero searches up
	// to half the frame size along each axis.
	MaxOffset int
}

// DefaultRegistrationOptions returns the options used when none are configured.
func DefaultRegistrationOptions() RegistrationOptions {
	return RegistrationOptions{Clip: 3}
}

// correlator computes linear cross-correlations of equally sized frames.
// Frames are zero-padded by the search radius so that every searched lag is
// free of circular wraparound.
type correlator struct {
	srcRows, srcCols int
	rows, cols       int
	maxDX, maxDY     int
	clip             float64

	rowFFT, colFFT *fourier.CmplxFFT
	lineOut        []complex128
	colLine        []complex128
	colOut         []complex128
}

func newCorrelator(srcRows, srcCols int, opts RegistrationOptions) *correlator {
	maxDY, maxDX := srcRows/2, srcCols/2
	if opts.MaxOffset > 0 {
		maxDY = min(opts.MaxOffset, srcRows-1)
		maxDX = min(opts.MaxOffset, srcCols-1)
	}
	rows := nextFastLen(srcRows + maxDY)
	cols := nextFastLen(srcCols + maxDX)
	return &correlator{
		srcRows: srcRows,
		srcCols: srcCols,
		rows:    rows,
		cols:    cols,
		maxDX:   maxDX,
		maxDY:   maxDY,
		clip:    opts.Clip,
		rowFFT:  fourier.NewCmplxFFT(cols),
		colFFT:  fourier.NewCmplxFFT(rows),
		lineOut: make([]complex128, cols),
		colLine: make([]complex128, rows),
		colOut:  make([]complex128, rows),
	}
}

// spectrum returns the 2-D transform of the median-subtracted, noise-clipped
// frame, and false when no pixel rises above the background and the clip.
func (c *correlator) spectrum(m Mat, st FrameStats) ([]complex128, bool) {
	buf := make([]complex128, c.rows*c.cols)
	data := m.DataFloat32()
	threshold := c.clip * st.StdDev
	signal := false
	for y := 0; y < c.srcRows; y++ {
		src := data[y*c.srcCols : (y+1)*c.srcCols]
		dst := buf[y*c.cols:]
		for x, v := range src {
			d := float64(v) - st.Median
			if d <= 0 || d < threshold || math.IsNaN(d) {
				continue
			}
			dst[x] = complex(d, 0)
			signal = true
		}
	}
	if !signal {
		return buf, false
	}
	c.transform(buf, c.srcRows, false)
	return buf, true
}

// transform runs the row and column passes in place. Rows at or past
// nonzeroRows are known to be zero and skip the row pass.
func (c *correlator) transform(buf []complex128, nonzeroRows int, inverse bool) {
	apply := func(t *fourier.CmplxFFT, dst, src []complex128) {
		if inverse {
			t.Sequence(dst, src)
		} else {
			t.Coefficients(dst, src)
		}
	}
	for r := 0; r < nonzeroRows; r++ {
		row := buf[r*c.cols : (r+1)*c.cols]
		apply(c.rowFFT, c.lineOut, row)
		copy(row, c.lineOut)
	}
	for x := 0; x < c.cols; x++ {
		for r := 0; r < c.rows; r++ {
			c.colLine[r] = buf[r*c.cols+x]
		}
		apply(c.colFFT, c.colOut, c.colLine)
		for r := 0; r < c.rows; r++ {
			buf[r*c.cols+x] = c.colOut[r]
		}
	}
}

// peak correlates frame against ref and returns the displacement that
// aligns frame onto ref. frame is overwritten.
func (c *correlator) peak(ref, frame []complex128) Offset {
	for i := range frame {
		frame[i] = ref[i] * cmplx.Conj(frame[i])
	}
	c.transform(frame, c.rows, true)

	var best Offset
	var bestVal float64
	found := false
	for dy := -c.maxDY; dy <= c.maxDY; dy++ {
		row := ((dy % c.rows) + c.rows) % c.rows
		for dx := -c.maxDX; dx <= c.maxDX; dx++ {
			col := ((dx % c.cols) + c.cols) % c.cols
			v := real(frame[row*c.cols+col])
			cand := Offset{DX: dx, DY: dy}
			if !found {
				best, bestVal, found = cand, v, true
				continue
			}
			// equal peaks resolve to the smallest displacement
			tol := 1e-9 * math.Abs(bestVal)
			switch {
			case v > bestVal+tol:
				best, bestVal = cand, v
			case v >= bestVal-tol && offsetNorm(cand) < offsetNorm(best):
				best = cand
			}
		}
	}
	return best
}

func offsetNorm(o Offset) int { return o.DX*o.DX + o.DY*o.DY }

// nextFastLen returns the smallest n' >= n whose only prime factors are 2, 3
// and 5.
func nextFastLen(n int) int {
	if n <= 1 {
		return 1
	}
	for m := n; ; m++ {
		k := m
		for _, p := range []int{2, 3, 5} {
			for k%p == 0 {
				k /= p
			}
		}
		if k == 1 {
			return m
		}
	}
}

// GetOffset estimates the displacement of every frame relative to the frame
// at reference. The reference frame always gets (0,0) and a single-frame
// stack skips estimation.
func GetOffset(stack *FrameStack, stats []FrameStats, reference int, opts RegistrationOptions) ([]Offset, error) {
	n := stack.Len()
	if n == 0 {
		return nil, ErrNoFrames
	}
	if reference < 0 || reference >= n {
		return nil, fmt.Errorf("reference frame %d out of range [0,%d)", reference, n)
	}
	if len(stats) != n {
		return nil, fmt.Errorf("got %d frame statistics for %d frames", len(stats), n)
	}
	offsets := make([]Offset, n)
	if n == 1 {
		return offsets, nil
	}

	c := newCorrelator(stack.Rows(), stack.Cols(), opts)
	ref, ok := c.spectrum(stack.Frames[reference], stats[reference])
	if !ok {
		slog.Warn("reference frame has no signal above clip, offsets left at zero",
			"band", stack.Band, "reference", reference)
		return offsets, nil
	}
	for i, f := range stack.Frames {
		if i == reference {
			continue
		}
		if !sameShape(f, stack.Frames[reference]) {
			return nil, &ShapeError{
				Stage: fmt.Sprintf("register frame %d", i),
				Want:  [2]int{stack.Rows(), stack.Cols()},
				Got:   [2]int{f.Rows(), f.Cols()},
			}
		}
		spec, ok := c.spectrum(f, stats[i])
		if !ok {
			slog.Warn("frame has no signal above clip, offset left at zero", "band", stack.Band, "frame", i)
			continue
		}
		offsets[i] = c.peak(ref, spec)
		slog.Debug("frame offset", "band", stack.Band, "frame", i, "dx", offsets[i].DX, "dy", offsets[i].DY)
	}
	return offsets, nil
}

// RegisterFrame estimates the displacement aligning frame onto ref.
func RegisterFrame(ref, frame Mat, refStats, frameStats FrameStats, opts RegistrationOptions) (Offset, error) {
	if !sameShape(ref, frame) {
		return Offset{}, &ShapeError{
			Stage: "register",
			Want:  [2]int{ref.Rows(), ref.Cols()},
			Got:   [2]int{frame.Rows(), frame.Cols()},
		}
	}
	c := newCorrelator(ref.Rows(), ref.Cols(), opts)
	refSpec, ok := c.spectrum(ref, refStats)
	if !ok {
		return Offset{}, nil
	}
	spec, ok := c.spectrum(frame, frameStats)
	if !ok {
		return Offset{}, nil
	}
	return c.peak(refSpec, spec), nil
}

// ShiftData returns a copy of m moved by o: out(y, x) = m(y-DY, x-DX).
// Pixels shifted in from outside the frame are zero and the shape is kept.
func ShiftData(m Mat, o Offset) Mat {
	rows, cols := m.Rows(), m.Cols()
	out := NewMatWithSize(rows, cols)
	if o.IsZero() {
		CopyMatTo(m, &out)
		return out
	}
	src, dst := m.DataFloat32(), out.DataFloat32()
	x0 := clampInt(o.DX, 0, cols)
	x1 := clampInt(cols+o.DX, 0, cols)
	if x0 >= x1 {
		return out
	}
	for y := 0; y < rows; y++ {
		sy := y - o.DY
		if sy < 0 || sy >= rows {
			continue
		}
		copy(dst[y*cols+x0:y*cols+x1], src[sy*cols+x0-o.DX:sy*cols+x1-o.DX])
	}
	return out
}

// ShiftStack applies one offset per frame in place.
func ShiftStack(stack *FrameStack, offsets []Offset) error {
	if len(offsets) != stack.Len() {
		return fmt.Errorf("got %d offsets for %d frames", len(offsets), stack.Len())
	}
	for i, o := range offsets {
		if o.IsZero() {
			continue
		}
		shifted := ShiftData(stack.Frames[i], o)
		stack.Frames[i].Close()
		stack.Frames[i] = shifted
	}
	stack.Stats = nil
	return nil
}
