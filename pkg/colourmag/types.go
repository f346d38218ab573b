/*
Extracted from HocusFocus plugin by George Hilios.
Original Copyright © 2021 George Hilios <ghilios+NINA@googlemail.com>
Licensed under Mozilla Public License 2.0.
Ported to Go.
*/

package colourmag

import (
	"fmt"
	"image"
	"math"
)

// Band identifies one of the two wavelength channels.
type Band int

const (
	BandShort Band = iota
	BandLong
)

// BandShared labels correction frames used by both bands.
const BandShared Band = -1

// NumBands is the number of wavelength channels the pipeline reduces.
const NumBands = 2

func (b Band) String() string {
	switch b {
	case BandShort:
		return "short"
	case BandLong:
		return "long"
	case BandShared:
		return "shared"
	default:
		return "unknown"
	}
}

// Valid reports whether b names one of the two supported bands.
func (b Band) Valid() bool { return b == BandShort || b == BandLong }

// Point2d represents a 2D point with float64 coordinates.
type Point2d struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset is an integer pixel displacement that aligns a frame to the
// reference frame of its stack. DX runs along columns, DY along rows.
type Offset struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

func (o Offset) String() string { return fmt.Sprintf("(%d,%d)", o.DX, o.DY) }

// Neg returns the opposite displacement.
func (o Offset) Neg() Offset { return Offset{DX: -o.DX, DY: -o.DY} }

// IsZero reports whether the offset is (0,0).
func (o Offset) IsZero() bool { return o.DX == 0 && o.DY == 0 }

// FrameStats is the sigma-clipped background estimate of one frame.
type FrameStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std"`
}

func (s FrameStats) String() string {
	return fmt.Sprintf("{Mean=%f, Median=%f, StdDev=%f}", s.Mean, s.Median, s.StdDev)
}

// StarDetectorParams contains all parameters for star detection.
type StarDetectorParams struct {
	// FWHM is the expected point-spread full width at half maximum in pixels.
	FWHM float64
	// Ratio is the minimum accepted roundness (minor/major axis), in (0, 1].
	Ratio float64
	// Threshold is the detection significance in units of the background std.
	Threshold float64

	HotpixelFiltering         bool
	HotpixelSigma             float64
	MinSeparation             float64
	MaxFWHMDeviation          float64
	BorderMargin              int
	MaxStars                  int
	MinStars                  int
	SaveIntermediateFilesPath string
}

// NewStarDetectorParams creates a StarDetectorParams with default values
// for everything but the three user-facing knobs.
func NewStarDetectorParams(fwhm, ratio, threshold float64) *StarDetectorParams {
	return &StarDetectorParams{
		FWHM:              fwhm,
		Ratio:             ratio,
		Threshold:         threshold,
		HotpixelFiltering: true,
		HotpixelSigma:     5.0,
		MinSeparation:     fwhm,
		MaxFWHMDeviation:  1.0,
		BorderMargin:      0,
		MaxStars:          0,
		MinStars:          1,
	}
}

// sigma returns the Gaussian sigma matching the configured FWHM.
func (p *StarDetectorParams) sigma() float64 {
	return p.FWHM / sigmaToFWHM
}

// boxHalfSize is the half width of the measurement box around a peak.
func (p *StarDetectorParams) boxHalfSize() int {
	h := int(math.Ceil(1.5 * p.FWHM))
	if h < 2 {
		h = 2
	}
	return h
}

var sigmaToFWHM = 2.0 * math.Sqrt(2.0*math.Log(2.0))

// Star is one detected point source.
type Star struct {
	Center          Point2d
	StarBoundingBox image.Rectangle
	Peak            float64
	Significance    float64
	Roundness       float64
	FWHM            float64
}

func (s *Star) String() string {
	return fmt.Sprintf("{Center=(%f,%f), BBox=%v, Peak=%f, Significance=%f, Roundness=%f, FWHM=%f}",
		s.Center.X, s.Center.Y, s.StarBoundingBox, s.Peak, s.Significance, s.Roundness, s.FWHM)
}

// StarDetectorMetrics tracks detection filtering statistics.
type StarDetectorMetrics struct {
	PeakCandidates int
	TotalDetected  int
	OnBorder       int
	BelowThreshold int
	Degenerate     int
	TooElongated   int
	WrongWidth     int
	Truncated      int
	HotpixelCount  int64
}

func (m *StarDetectorMetrics) String() string {
	return fmt.Sprintf("{Peaks=%d, Detected=%d, OnBorder=%d, BelowThreshold=%d, Degenerate=%d, TooElongated=%d, WrongWidth=%d, Truncated=%d, Hotpixels=%d}",
		m.PeakCandidates, m.TotalDetected, m.OnBorder, m.BelowThreshold, m.Degenerate, m.TooElongated, m.WrongWidth, m.Truncated, m.HotpixelCount)
}

// StarDetectorResult is the output of single-band detection.
type StarDetectorResult struct {
	DetectedStars []*Star
	Metrics       *StarDetectorMetrics
}

// Positions returns the centroids of the detected stars in order.
func (r *StarDetectorResult) Positions() []Point2d {
	out := make([]Point2d, len(r.DetectedStars))
	for i, s := range r.DetectedStars {
		out[i] = s.Center
	}
	return out
}
