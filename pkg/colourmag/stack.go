package colourmag

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/floats"
)

// FrameStack is an ordered set of equally sized frames of one band.
type FrameStack struct {
	Band   Band
	Frames []Mat
	Paths  []string
	// Header is the FITS header of the first frame, nil for other formats.
	Header *FitsMetadata
	// Filter is the FILTER keyword of the first frame.
	Filter string
	// Stats holds one entry per frame once ComputeStats has run.
	Stats []FrameStats
}

// NewFrameStack wraps already loaded frames.
func NewFrameStack(band Band, frames ...Mat) (*FrameStack, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	for i := 1; i < len(frames); i++ {
		if !sameShape(frames[i], frames[0]) {
			return nil, &ShapeError{
				Stage: "stack",
				Want:  [2]int{frames[0].Rows(), frames[0].Cols()},
				Got:   [2]int{frames[i].Rows(), frames[i].Cols()},
			}
		}
	}
	return &FrameStack{Band: band, Frames: frames}, nil
}

func (s *FrameStack) Len() int { return len(s.Frames) }

func (s *FrameStack) Rows() int {
	if len(s.Frames) == 0 {
		return 0
	}
	return s.Frames[0].Rows()
}

func (s *FrameStack) Cols() int {
	if len(s.Frames) == 0 {
		return 0
	}
	return s.Frames[0].Cols()
}

// Close releases every frame.
func (s *FrameStack) Close() {
	if s == nil {
		return
	}
	for i := range s.Frames {
		s.Frames[i].Close()
	}
	s.Frames = nil
	s.Stats = nil
}

// checkShape fails with a ShapeError when other does not match s.
func (s *FrameStack) checkShape(other *FrameStack, stage string) error {
	if other.Rows() != s.Rows() || other.Cols() != s.Cols() {
		return &ShapeError{
			Stage: stage,
			Want:  [2]int{s.Rows(), s.Cols()},
			Got:   [2]int{other.Rows(), other.Cols()},
		}
	}
	return nil
}

// ComputeStats recomputes the sigma-clipped statistics of every frame.
func (s *FrameStack) ComputeStats(kappa float64, maxIterations int) []FrameStats {
	s.Stats = make([]FrameStats, len(s.Frames))
	for i, f := range s.Frames {
		s.Stats[i] = SigmaClippedStats(f, kappa, maxIterations)
	}
	return s.Stats
}

// CreateMaster returns the elementwise mean of the stack. A single frame is
// copied through unchanged. No outlier rejection is applied.
func CreateMaster(s *FrameStack) (Mat, error) {
	if s == nil || len(s.Frames) == 0 {
		return Mat{}, ErrNoFrames
	}
	if len(s.Frames) == 1 {
		return s.Frames[0].Clone(), nil
	}

	n := s.Rows() * s.Cols()
	acc := make([]float64, n)
	buf := make([]float64, n)
	for i, f := range s.Frames {
		if !sameShape(f, s.Frames[0]) {
			return Mat{}, &ShapeError{
				Stage: fmt.Sprintf("stack frame %d", i),
				Want:  [2]int{s.Rows(), s.Cols()},
				Got:   [2]int{f.Rows(), f.Cols()},
			}
		}
		for j, v := range f.DataFloat32() {
			buf[j] = float64(v)
		}
		floats.Add(acc, buf)
	}
	count := float64(len(s.Frames))
	for j := range acc {
		acc[j] /= count
	}
	slog.Debug("stacked master", "band", s.Band, "frames", len(s.Frames))
	return matFromFloat64(acc, s.Rows(), s.Cols()), nil
}
