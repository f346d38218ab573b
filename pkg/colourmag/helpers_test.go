package colourmag

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// testStar is a circular Gaussian source in a synthetic frame.
type testStar struct {
	X, Y  float64
	Amp   float64
	Sigma float64
	// SigmaY overrides Sigma along y when non-zero.
	SigmaY float64
}

type frameSpec struct {
	Rows, Cols int
	Background float64
	Noise      float64
	Seed       uint64
	Stars      []testStar
}

func (fs frameSpec) pixels() []float32 {
	rng := rand.New(rand.NewPCG(fs.Seed, fs.Seed^0x9e3779b97f4a7c15))
	data := make([]float32, fs.Rows*fs.Cols)
	for y := 0; y < fs.Rows; y++ {
		for x := 0; x < fs.Cols; x++ {
			v := fs.Background
			for _, s := range fs.Stars {
				sy := s.SigmaY
				if sy == 0 {
					sy = s.Sigma
				}
				dx, dy := float64(x)-s.X, float64(y)-s.Y
				v += s.Amp * math.Exp(-dx*dx/(2*s.Sigma*s.Sigma)-dy*dy/(2*sy*sy))
			}
			if fs.Noise > 0 {
				v += fs.Noise * rng.NormFloat64()
			}
			data[y*fs.Cols+x] = float32(v)
		}
	}
	return data
}

func (fs frameSpec) mat() Mat {
	return matFromFloat32(fs.pixels(), fs.Rows, fs.Cols)
}

func constantMat(rows, cols int, v float32) Mat {
	m := NewMatWithSize(rows, cols)
	data := m.DataFloat32()
	for i := range data {
		data[i] = v
	}
	return m
}

func newTestStack(t *testing.T, band Band, frames ...Mat) *FrameStack {
	t.Helper()
	s, err := NewFrameStack(band, frames...)
	if err != nil {
		t.Fatalf("NewFrameStack: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func float32Slice(m Mat) []float32 {
	return append([]float32(nil), m.DataFloat32()...)
}

var approx = cmpopts.EquateApprox(0, 1e-4)

func assertPixelsEqual(t *testing.T, want, got []float32) {
	t.Helper()
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("pixels mismatch (-want +got):\n%s", diff)
	}
}

// fieldStars is a set of well separated stars of decreasing brightness.
func fieldStars(scale float64) []testStar {
	return []testStar{
		{X: 30.3, Y: 24.6, Amp: 1200 * scale, Sigma: 1.7},
		{X: 70.8, Y: 30.2, Amp: 900 * scale, Sigma: 1.7},
		{X: 50.1, Y: 55.4, Amp: 700 * scale, Sigma: 1.7},
		{X: 24.6, Y: 72.9, Amp: 500 * scale, Sigma: 1.7},
		{X: 74.2, Y: 74.7, Amp: 350 * scale, Sigma: 1.7},
	}
}
