package colourmag

import (
	"fmt"
	"math"
	"sort"
)

// Fluxes holds the background-subtracted aperture sum of every source,
// indexed [band][source].
type Fluxes [NumBands][]float64

// Len returns the number of sources.
func (f Fluxes) Len() int { return len(f[BandShort]) }

// circleOverlap returns the area of the intersection of the circle of
// radius r centred on the origin with the rectangle [x0,x1]x[y0,y1].
func circleOverlap(x0, x1, y0, y1, r float64) float64 {
	lo, hi := math.Max(x0, -r), math.Min(x1, r)
	if lo >= hi || y0 >= r || y1 <= -r {
		return 0
	}

	// chord antiderivative: integral of sqrt(r^2 - x^2)
	g := func(x float64) float64 {
		x = math.Max(-r, math.Min(r, x))
		return 0.5 * (x*math.Sqrt(r*r-x*x) + r*r*math.Asin(x/r))
	}
	chord := func(x float64) float64 { return math.Sqrt(math.Max(0, r*r-x*x)) }

	cuts := []float64{lo, hi}
	for _, y := range []float64{y0, y1} {
		if math.Abs(y) < r {
			xc := math.Sqrt(r*r - y*y)
			for _, c := range []float64{-xc, xc} {
				if c > lo && c < hi {
					cuts = append(cuts, c)
				}
			}
		}
	}
	sort.Float64s(cuts)

	area := 0.0
	for i := 0; i+1 < len(cuts); i++ {
		a, b := cuts[i], cuts[i+1]
		if b <= a {
			continue
		}
		s := chord((a + b) / 2)
		upperIsEdge := y1 < s
		lowerIsEdge := y0 > -s
		upper, lower := s, -s
		if upperIsEdge {
			upper = y1
		}
		if lowerIsEdge {
			lower = y0
		}
		if upper <= lower {
			continue
		}
		seg := 0.0
		if upperIsEdge {
			seg += y1 * (b - a)
		} else {
			seg += g(b) - g(a)
		}
		if lowerIsEdge {
			seg -= y0 * (b - a)
		} else {
			seg += g(b) - g(a)
		}
		area += seg
	}
	return area
}

// ApertureSum sums (pixel - background) over a circular aperture, weighting
// each pixel by the fraction of its area inside the circle. Pixel centres lie
// on integer coordinates. Negative sums are returned as is.
func ApertureSum(img Mat, background float64, center Point2d, radius float64) float64 {
	width, height := img.Cols(), img.Rows()
	data := img.DataFloat32()
	xMin := clampInt(int(math.Floor(center.X-radius-0.5)), 0, width-1)
	xMax := clampInt(int(math.Ceil(center.X+radius+0.5)), 0, width-1)
	yMin := clampInt(int(math.Floor(center.Y-radius-0.5)), 0, height-1)
	yMax := clampInt(int(math.Ceil(center.Y+radius+0.5)), 0, height-1)
	r2 := radius * radius

	sum := 0.0
	for y := yMin; y <= yMax; y++ {
		py0 := float64(y) - 0.5 - center.Y
		py1 := py0 + 1
		for x := xMin; x <= xMax; x++ {
			v := float64(data[y*width+x])
			if math.IsNaN(v) {
				continue
			}
			px0 := float64(x) - 0.5 - center.X
			px1 := px0 + 1

			farX := math.Max(px0*px0, px1*px1)
			farY := math.Max(py0*py0, py1*py1)
			var frac float64
			switch {
			case farX+farY <= r2:
				frac = 1
			case nearestSq(px0, px1)+nearestSq(py0, py1) >= r2:
				continue
			default:
				frac = circleOverlap(px0, px1, py0, py1, radius)
			}
			sum += (v - background) * frac
		}
	}
	return sum
}

// nearestSq is the squared distance from 0 to the interval [a,b].
func nearestSq(a, b float64) float64 {
	switch {
	case a > 0:
		return a * a
	case b < 0:
		return b * b
	default:
		return 0
	}
}

// AperturePhotometry measures every source position of both bands with an
// aperture of the given radius, subtracting each master's median background.
func AperturePhotometry(masters [NumBands]Mat, stats [NumBands]FrameStats, positions [NumBands][]Point2d, radius float64) (Fluxes, error) {
	var out Fluxes
	if radius <= 0 {
		return out, fmt.Errorf("aperture radius must be positive, got %f", radius)
	}
	if len(positions[BandShort]) != len(positions[BandLong]) {
		return out, fmt.Errorf("position tables differ in length: %d and %d",
			len(positions[BandShort]), len(positions[BandLong]))
	}
	for b := 0; b < NumBands; b++ {
		out[b] = make([]float64, len(positions[b]))
		for i, p := range positions[b] {
			out[b][i] = ApertureSum(masters[b], stats[b].Median, p, radius)
		}
	}
	return out, nil
}
