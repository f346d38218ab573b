package colourmag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBandFrames writes one FITS frame per shift. Every frame is the base
// field with fresh noise, moved by its shift and raised by pedestal.
func writeBandFrames(t *testing.T, dir string, base frameSpec, shifts []Offset, pedestal float32) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i, s := range shifts {
		spec := base
		spec.Seed = base.Seed + uint64(i)
		m := spec.mat()
		moved := ShiftData(m, s)
		m.Close()
		for j := range moved.DataFloat32() {
			moved.DataFloat32()[j] += pedestal
		}
		writeFitsFrame(t, filepath.Join(dir, fmt.Sprintf("frame_%02d.fits", i)), moved, "M 67")
		moved.Close()
	}
}

func writeConstantFrames(t *testing.T, dir string, rows, cols, n int, v float32) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for i := 0; i < n; i++ {
		m := constantMat(rows, cols, v)
		writeFitsFrame(t, filepath.Join(dir, fmt.Sprintf("cal_%02d.fits", i)), m, "")
		m.Close()
	}
}

var (
	shortShifts  = []Offset{{}, {DX: 3, DY: -2}, {DX: -4, DY: 1}}
	longShifts   = []Offset{{}, {DX: -2, DY: 2}, {DX: 1, DY: 3}}
	longDisplace = Offset{DX: 2, DY: 3}
)

func sessionConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.FWHM = 4
	cfg.RAperture = 1.5
	cfg.Ratio = 0.5
	cfg.Threshold = 5
	cfg.DoDark = true
	cfg.PathLightShort = filepath.Join(root, "light", "B")
	cfg.PathLightLong = filepath.Join(root, "light", "V")
	cfg.PathDarkShort = filepath.Join(root, "dark", "B")
	cfg.PathDarkLong = filepath.Join(root, "dark", "V")
	cfg.PathResult = filepath.Join(root, "result")
	cfg.ShortColour = "B"
	cfg.LongColour = "V"
	require.NoError(t, cfg.Validate())

	short := frameSpec{Rows: 96, Cols: 100, Background: 100, Noise: 3, Seed: 100, Stars: fieldStars(1)}
	long := frameSpec{Rows: 96, Cols: 100, Background: 60, Noise: 3, Seed: 200}
	for _, s := range fieldStars(0.8) {
		s.X += float64(longDisplace.DX)
		s.Y += float64(longDisplace.DY)
		long.Stars = append(long.Stars, s)
	}
	writeBandFrames(t, cfg.PathLightShort, short, shortShifts, 5)
	writeBandFrames(t, cfg.PathLightLong, long, longShifts, 0)
	writeConstantFrames(t, cfg.PathDarkShort, 96, 100, 2, 5)
	return &cfg
}

func TestSessionReduce(t *testing.T) {
	cfg := sessionConfig(t)
	s, err := NewSession(cfg)
	require.NoError(t, err)

	res, err := s.Reduce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Count)
	assert.Equal(t, [NumBands]int{5, 5}, res.Found)
	assert.Equal(t, []string{CorrectionDark}, res.Reports[BandShort].Applied)
	assert.Equal(t, []string{CorrectionDark}, res.Reports[BandLong].Skipped)
	assert.FileExists(t, res.OverlayPath)
	assert.FileExists(t, filepath.Join(cfg.PathResult, SessionFileName))

	st, err := s.State()
	require.NoError(t, err)
	assert.Equal(t, res.RunID, st.RunID)
	assert.Equal(t, NewStatuses(5), st.Statuses)
	assert.Empty(t, st.References)
	assert.InDelta(t, 6, st.ApertureRadius, 1e-12)
	for i, sh := range shortShifts {
		assert.Equal(t, sh.Neg(), st.Bands[BandShort].Offsets[i], "short frame %d", i)
	}
	for i, sh := range longShifts {
		assert.Equal(t, sh.Neg(), st.Bands[BandLong].Offsets[i], "long frame %d", i)
	}
	assert.Equal(t, longDisplace.Neg(), st.MasterOffset)

	// both bands measure the same stars on the short band grid
	stars := fieldStars(1)
	for b := 0; b < NumBands; b++ {
		require.Len(t, st.Bands[b].Positions, 5)
		require.Len(t, st.Bands[b].Fluxes, 5)
		for i, want := range stars {
			got := st.Bands[b].Positions[i]
			assert.InDelta(t, want.X, got.X, 0.5, "band %d source %d", b, i)
			assert.InDelta(t, want.Y, got.Y, 0.5, "band %d source %d", b, i)
			assert.Greater(t, st.Bands[b].Fluxes[i], 0.0)
		}
	}

	for b := Band(0); b < NumBands; b++ {
		path := res.MasterPaths[b]
		assert.True(t, strings.HasPrefix(filepath.Base(path), cfg.BandColour(b)+"_"), path)
		master, err := ReadFits(path)
		require.NoError(t, err)
		frames, ok := master.Metadata.GetInt("SNAPSHOT")
		require.True(t, ok)
		assert.Equal(t, 3, frames)
		assert.Equal(t, res.RunID, master.Metadata.GetString("RUNID"))
		assert.Equal(t, "M 67", master.Metadata.ObjectName())
		assert.Equal(t, MasterNote, master.Metadata.GetString("NOTE"))
	}
	calib, err := ReadFitsMetadataOnly(res.MasterPaths[BandShort])
	require.NoError(t, err)
	assert.Equal(t, "dark", calib.Metadata.GetString("CALIB"))
}

func TestSessionInteractiveCommands(t *testing.T) {
	cfg := sessionConfig(t)
	s, err := NewSession(cfg)
	require.NoError(t, err)
	_, err = s.Reduce(context.Background())
	require.NoError(t, err)

	s, err = OpenSession(cfg)
	require.NoError(t, err)

	require.NoError(t, s.RecordReference(0, 11.0, 10.4))
	require.NoError(t, s.RecordReference(1, 11.5, 10.8))
	require.NoError(t, s.RecordReference(1, 11.4, 10.7))
	assert.ErrorIs(t, s.RecordReference(5, 1, 1), ErrSourceIndex)
	assert.ErrorIs(t, s.RecordReference(-1, 1, 1), ErrSourceIndex)

	require.NoError(t, s.ToggleSelection(2))
	assert.ErrorIs(t, s.ToggleSelection(3, 9), ErrSourceIndex)

	// changes are persisted and visible to a new session
	reopened, err := OpenSession(cfg)
	require.NoError(t, err)
	st, err := reopened.State()
	require.NoError(t, err)
	assert.Equal(t, []StarStatus{Selected | Labeled, Selected | Labeled, Deselected, Selected, Selected}, st.Statuses)
	assert.Equal(t, []RefEntry{
		{Band: BandShort, Index: 0, Magnitude: 11.0},
		{Band: BandShort, Index: 1, Magnitude: 11.4},
		{Band: BandLong, Index: 0, Magnitude: 10.4},
		{Band: BandLong, Index: 1, Magnitude: 10.7},
	}, st.References)

	cmd, _, err := reopened.ColourMagnitude(0)
	require.NoError(t, err)
	assert.False(t, cmd.Arbitrary)
	assert.InDelta(t, 11.0, cmd.Points[0].Mag[BandShort], 1e-6)
	assert.InDelta(t, 10.7, cmd.Points[1].Mag[BandLong], 1e-6)

	saved, err := reopened.Save(0.05)
	require.NoError(t, err)
	assert.FileExists(t, saved.TablePath)
	assert.FileExists(t, saved.PlotPath)
	assert.Equal(t, 4, saved.Rows)
	table, err := os.ReadFile(saved.TablePath)
	require.NoError(t, err)
	assert.Equal(t, 5, strings.Count(string(table), "\n"))

	require.NoError(t, reopened.ToggleAll())
	st, err = reopened.State()
	require.NoError(t, err)
	assert.Equal(t, []StarStatus{Labeled, Labeled, Selected, Deselected, Deselected}, st.Statuses)

	master, err := reopened.Offsets(OffsetsMaster)
	require.NoError(t, err)
	assert.Equal(t, []Offset{{}, longDisplace.Neg()}, master)
	short, err := reopened.Offsets(OffsetsShort)
	require.NoError(t, err)
	assert.Len(t, short, len(shortShifts))
	_, err = reopened.Offsets("sideways")
	assert.Error(t, err)

	overlay := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, reopened.RenderOverlay(overlay))
	assert.FileExists(t, overlay)
}

func TestSessionFailedReduceKeepsState(t *testing.T) {
	cfg := sessionConfig(t)
	s, err := NewSession(cfg)
	require.NoError(t, err)
	first, err := s.Reduce(context.Background())
	require.NoError(t, err)

	broken := *cfg
	broken.PathLightLong = filepath.Join(t.TempDir(), "empty")
	s2, err := OpenSession(&broken)
	require.NoError(t, err)
	_, err = s2.Reduce(context.Background())
	require.ErrorIs(t, err, ErrNoFrames)

	st, err := s2.State()
	require.NoError(t, err)
	assert.Equal(t, first.RunID, st.RunID)

	again, err := OpenSession(cfg)
	require.NoError(t, err)
	st, err = again.State()
	require.NoError(t, err)
	assert.Equal(t, first.RunID, st.RunID)
}

func TestSessionWithoutReduce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PathResult = t.TempDir()
	_, err := OpenSession(&cfg)
	assert.ErrorIs(t, err, ErrNoSession)

	s, err := NewSession(&cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, s.ToggleAll(), ErrNoSession)
	_, err = s.State()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionReduceCancelled(t *testing.T) {
	cfg := sessionConfig(t)
	s, err := NewSession(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Reduce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(filepath.Join(cfg.PathResult, SessionFileName))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSessionFlatDarksAreShared(t *testing.T) {
	cfg := sessionConfig(t)
	cfg.DoFlat = true
	cfg.DoDarkFlat = true
	cfg.PathDarkFlat = filepath.Join(filepath.Dir(cfg.PathResult), "flatdark")
	writeConstantFrames(t, cfg.PathDarkFlat, 96, 100, 2, 3)

	s, err := NewSession(cfg)
	require.NoError(t, err)
	flatDarks, err := s.loadFlatDarks()
	require.NoError(t, err)
	require.NotNil(t, flatDarks)
	defer flatDarks.Close()
	assert.Equal(t, BandShared, flatDarks.Band)
	assert.Equal(t, "shared", flatDarks.Band.String())
	assert.False(t, flatDarks.Band.Valid())
	assert.Equal(t, 2, flatDarks.Len())

	cfg.DoFlat = false
	flatDarks, err = s.loadFlatDarks()
	require.NoError(t, err)
	assert.Nil(t, flatDarks, "flat-darks are only used with flats")
}
