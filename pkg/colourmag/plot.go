package colourmag

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// CMDSeries returns the plotted points: reddening-corrected colour index
// against long-band magnitude, for selected sources with defined magnitudes.
func CMDSeries(cmd *CMD, statuses []StarStatus) plotter.XYs {
	pts := make(plotter.XYs, 0, len(cmd.Points))
	for _, p := range cmd.Points {
		if !p.Valid() || p.Index >= len(statuses) || !statuses[p.Index].Has(Selected) {
			continue
		}
		pts = append(pts, plotter.XY{X: p.Colour0, Y: p.Mag[BandLong]})
	}
	return pts
}

// NewCMDPlot builds the colour-magnitude diagram with the magnitude axis
// inverted so brighter sources are at the top.
func NewCMDPlot(cmd *CMD, statuses []StarStatus, shortColour, longColour string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Colour-magnitude diagram (%d sources)", len(cmd.Points))
	p.X.Label.Text = fmt.Sprintf("Colour Index (%s-%s)_0 [%s]", shortColour, longColour, cmd.Units())
	p.Y.Label.Text = fmt.Sprintf("%s [%s]", longColour, cmd.Units())
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Add(plotter.NewGrid())

	pts := CMDSeries(cmd, statuses)
	if len(pts) > 0 {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 30, G: 90, B: 255, A: 255}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
	}
	return p, nil
}

// SaveCMDPlot renders the colour-magnitude diagram to path; the format
// follows the file extension.
func SaveCMDPlot(path string, cmd *CMD, statuses []StarStatus, shortColour, longColour string) error {
	p, err := NewCMDPlot(cmd, statuses, shortColour, longColour)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("saving colour-magnitude plot: %w", err)
	}
	return nil
}

// SaveOffsetPlot renders dx and dy against frame index.
func SaveOffsetPlot(path, title string, offsets []Offset) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Offset (px)"
	p.Add(plotter.NewGrid())

	dx := make(plotter.XYs, len(offsets))
	dy := make(plotter.XYs, len(offsets))
	for i, o := range offsets {
		dx[i] = plotter.XY{X: float64(i), Y: float64(o.DX)}
		dy[i] = plotter.XY{X: float64(i), Y: float64(o.DY)}
	}

	series := []struct {
		label string
		pts   plotter.XYs
		c     color.RGBA
	}{
		{"dx", dx, color.RGBA{R: 200, A: 255}},
		{"dy", dy, color.RGBA{B: 200, A: 255}},
	}
	for _, s := range series {
		if len(s.pts) == 0 {
			continue
		}
		line, points, err := plotter.NewLinePoints(s.pts)
		if err != nil {
			return err
		}
		line.Color = s.c
		line.Width = vg.Points(1)
		points.Color = s.c
		p.Add(line, points)
		p.Legend.Add(s.label, line, points)
	}
	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving offset plot: %w", err)
	}
	return nil
}
