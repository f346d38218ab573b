package colourmag

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ArbitraryZeroPoint is the nominal magnitude assigned to the zero-point
// source when no calibration transform is available.
const ArbitraryZeroPoint = 10.0

// Transform maps instrumental magnitude to standard magnitude:
// standard = Slope*instrumental + Intercept.
type Transform struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// Apply converts an instrumental magnitude.
func (t Transform) Apply(inst float64) float64 {
	return t.Slope*inst + t.Intercept
}

func (t Transform) String() string {
	return fmt.Sprintf("m = %.4f * m_inst + %.4f (R2=%.4f, n=%d)", t.Slope, t.Intercept, t.RSquared, t.N)
}

// InstrumentalMagnitude returns -2.5*log10(flux), NaN when flux <= 0.
func InstrumentalMagnitude(flux float64) float64 {
	if !(flux > 0) {
		return math.NaN()
	}
	return -2.5 * math.Log10(flux)
}

// FitTransform least-squares fits standard = slope*inst + intercept. Pairs
// with a non-finite value are dropped. It reports false when fewer than two
// pairs remain or all instrumental magnitudes are equal.
func FitTransform(inst, standard []float64) (Transform, bool) {
	x := make([]float64, 0, len(inst))
	y := make([]float64, 0, len(inst))
	for i := range inst {
		if !isFinite(inst[i]) || !isFinite(standard[i]) {
			continue
		}
		x = append(x, inst[i])
		y = append(y, standard[i])
	}
	if len(x) < 2 {
		return Transform{}, false
	}
	degenerate := true
	for _, v := range x[1:] {
		if v != x[0] {
			degenerate = false
			break
		}
	}
	if degenerate {
		return Transform{}, false
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	return Transform{
		Slope:     beta,
		Intercept: alpha,
		RSquared:  stat.RSquared(x, y, nil, alpha, beta),
		N:         len(x),
	}, true
}

// CMDPoint is one source of the colour-magnitude result. Mag and the colour
// indices are NaN when either band's flux is not positive.
type CMDPoint struct {
	Index   int
	Mag     [NumBands]float64
	Colour  float64
	Colour0 float64
}

// Valid reports whether the point has defined magnitudes.
func (p CMDPoint) Valid() bool {
	return isFinite(p.Mag[BandShort]) && isFinite(p.Mag[BandLong])
}

// CMD is the colour-magnitude relation of all detected sources.
type CMD struct {
	Points []CMDPoint
	// Transforms are nil in arbitrary-unit mode.
	Transforms [NumBands]*Transform
	Arbitrary  bool
	// ZeroPoint is the source each band is scaled to in arbitrary-unit mode.
	ZeroPoint [NumBands]int
	Reddening float64
}

// Units returns the axis unit label.
func (c *CMD) Units() string {
	if c.Arbitrary {
		return "a.u."
	}
	return "mag"
}

// ValidPoints returns the points with defined magnitudes.
func (c *CMD) ValidPoints() []CMDPoint {
	out := make([]CMDPoint, 0, len(c.Points))
	for _, p := range c.Points {
		if p.Valid() {
			out = append(out, p)
		}
	}
	return out
}

// ColourMagnitude fits one transform per band from the reference entries and
// applies it to every source. When either band lacks a transform, both bands
// fall back to magnitudes relative to the first source with positive flux,
// which is placed at ArbitraryZeroPoint.
// It has no side effects, so repeated calls with the same input agree.
func ColourMagnitude(fluxes Fluxes, refs []RefEntry, reddening float64) (*CMD, error) {
	n := fluxes.Len()
	if len(fluxes[BandLong]) != n {
		return nil, fmt.Errorf("flux tables differ in length: %d and %d", n, len(fluxes[BandLong]))
	}
	if n == 0 {
		return nil, ErrTooFewSources
	}

	cmd := &CMD{Reddening: reddening, Points: make([]CMDPoint, n)}
	for b := 0; b < NumBands; b++ {
		var inst, standard []float64
		for _, r := range refs {
			if int(r.Band) != b || r.Index < 0 || r.Index >= n {
				continue
			}
			inst = append(inst, InstrumentalMagnitude(fluxes[b][r.Index]))
			standard = append(standard, r.Magnitude)
		}
		if t, ok := FitTransform(inst, standard); ok {
			cmd.Transforms[b] = &t
		}
	}
	cmd.Arbitrary = cmd.Transforms[BandShort] == nil || cmd.Transforms[BandLong] == nil

	var zeroFlux [NumBands]float64
	if cmd.Arbitrary {
		cmd.Transforms = [NumBands]*Transform{}
		for b := 0; b < NumBands; b++ {
			cmd.ZeroPoint[b] = -1
			for i, f := range fluxes[b] {
				if f > 0 {
					cmd.ZeroPoint[b], zeroFlux[b] = i, f
					break
				}
			}
		}
	}

	for i := 0; i < n; i++ {
		p := CMDPoint{Index: i}
		valid := fluxes[BandShort][i] > 0 && fluxes[BandLong][i] > 0
		for b := 0; b < NumBands; b++ {
			switch {
			case !valid:
				p.Mag[b] = math.NaN()
			case cmd.Arbitrary:
				p.Mag[b] = -2.5*math.Log10(fluxes[b][i]/zeroFlux[b]) + ArbitraryZeroPoint
			default:
				p.Mag[b] = cmd.Transforms[b].Apply(InstrumentalMagnitude(fluxes[b][i]))
			}
		}
		p.Colour = p.Mag[BandShort] - p.Mag[BandLong]
		p.Colour0 = p.Colour - reddening
		cmd.Points[i] = p
	}
	return cmd, nil
}
