package colourmag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
)

func TestCMDSeries(t *testing.T) {
	fl := Fluxes{
		{1000, 100, -1, 400},
		{1000, 400, 100, 50},
	}
	cmd, err := ColourMagnitude(fl, nil, 0.5)
	require.NoError(t, err)

	pts := CMDSeries(cmd, []StarStatus{Selected, Selected, Selected, Deselected})
	require.Len(t, pts, 2)
	assert.InDelta(t, -0.5, pts[0].X, 1e-9)
	assert.InDelta(t, ArbitraryZeroPoint, pts[0].Y, 1e-9)
	assert.InDelta(t, cmd.Points[1].Colour0, pts[1].X, 1e-9)
	assert.InDelta(t, cmd.Points[1].Mag[BandLong], pts[1].Y, 1e-9)
}

func TestNewCMDPlot(t *testing.T) {
	cmd, err := ColourMagnitude(Fluxes{{100, 200}, {100, 300}}, nil, 0)
	require.NoError(t, err)
	p, err := NewCMDPlot(cmd, NewStatuses(2), "B", "V")
	require.NoError(t, err)
	assert.Equal(t, "Colour Index (B-V)_0 [a.u.]", p.X.Label.Text)
	assert.Equal(t, "V [a.u.]", p.Y.Label.Text)
	assert.IsType(t, plot.InvertedScale{}, p.Y.Scale)

	dir := t.TempDir()
	path := filepath.Join(dir, "cmd.png")
	require.NoError(t, SaveCMDPlot(path, cmd, NewStatuses(2), "B", "V"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// a fully deselected diagram still renders
	require.NoError(t, SaveCMDPlot(filepath.Join(dir, "empty.png"), cmd, []StarStatus{Deselected, Deselected}, "B", "V"))
}

func TestSaveOffsetPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.png")
	require.NoError(t, SaveOffsetPlot(path, "short", []Offset{{}, {DX: 2, DY: -1}, {DX: -3, DY: 4}}))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
