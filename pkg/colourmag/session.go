package colourmag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OverlayFileName is the selection overlay written by Reduce.
const OverlayFileName = "overlay.png"

// MasterNote is the provenance note written into every master.
const MasterNote = "Created by colourmag"

// Session owns the reduction state shared by the interactive commands. All
// mutations go through the session lock, and a state is only published once
// it has been persisted.
type Session struct {
	cfg   *Config
	store *FSStore
	now   func() time.Time

	mu    sync.Mutex
	state *SessionState
}

// NewSession creates an empty session persisting into cfg.PathResult.
func NewSession(cfg *Config) (*Session, error) {
	store, err := NewFSStore(cfg.PathResult)
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, store: store, now: time.Now}, nil
}

// OpenSession loads the session persisted by a previous Reduce.
func OpenSession(cfg *Config) (*Session, error) {
	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	st, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	s.state = st
	return s, nil
}

// State returns a copy of the committed state.
func (s *Session) State() (*SessionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, ErrNoSession
	}
	return s.state.clone(), nil
}

// ReduceResult summarises one reduction run.
type ReduceResult struct {
	RunID       string
	Count       int
	Found       [NumBands]int
	Reports     [NumBands]CalibrationReport
	MasterPaths [NumBands]string
	OverlayPath string
	Metrics     [NumBands]*StarDetectorMetrics
}

// Reduce runs the full pipeline: load, calibrate, register, stack, co-register
// the masters, detect, measure, then write masters, overlay and session. On
// error the previously committed state is kept.
func (s *Session) Reduce(ctx context.Context) (*ReduceResult, error) {
	cfg := s.cfg
	runID := uuid.NewString()
	created := s.now()
	ts := created.Format(TimestampLayout)
	res := &ReduceResult{RunID: runID}
	st := &SessionState{RunID: runID, Created: created, ApertureRadius: cfg.ApertureRadius()}

	var masters [NumBands]Mat
	var made [NumBands]bool
	var headers [NumBands]*FitsMetadata
	defer func() {
		for b := range masters {
			if made[b] {
				masters[b].Close()
			}
		}
	}()

	flatDarks, err := s.loadFlatDarks()
	if err != nil {
		return nil, err
	}
	defer flatDarks.Close()

	for b := Band(0); b < NumBands; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bs := &st.Bands[b]
		bs.Colour = cfg.BandColour(b)

		master, frames, err := s.reduceBand(b, flatDarks, bs)
		if err != nil {
			return nil, err
		}
		masters[b], made[b] = master, true
		headers[b] = frames.Header
		res.Reports[b] = bs.Calibration
		frames.Close()
	}

	// Co-register the long master onto the short one so detection in both
	// bands works on a common grid.
	opts := cfg.RegistrationOptions()
	mo, err := RegisterFrame(masters[BandShort], masters[BandLong],
		st.Bands[BandShort].MasterStats, st.Bands[BandLong].MasterStats, opts)
	if err != nil {
		return nil, fmt.Errorf("master registration: %w", err)
	}
	st.MasterOffset = mo
	if !mo.IsZero() {
		shifted := ShiftData(masters[BandLong], mo)
		masters[BandLong].Close()
		masters[BandLong] = shifted
		st.Bands[BandLong].MasterStats = SigmaClippedStats(shifted, cfg.SigmaClip, cfg.ClipIterations)
	}
	slog.Info("registered masters", "dx", mo.DX, "dy", mo.DY)

	stats := [NumBands]FrameStats{st.Bands[BandShort].MasterStats, st.Bands[BandLong].MasterStats}
	det, err := DetectStars(ctx, masters, stats, cfg.DetectorParams())
	if err != nil {
		return nil, err
	}
	fluxes, err := AperturePhotometry(masters, stats, det.Positions, cfg.ApertureRadius())
	if err != nil {
		return nil, fmt.Errorf("photometry: %w", err)
	}
	st.Count = det.Count
	st.Statuses = NewStatuses(det.Count)
	for b := 0; b < NumBands; b++ {
		st.Bands[b].Found = det.Found[b]
		st.Bands[b].Positions = det.Positions[b]
		st.Bands[b].Fluxes = fluxes[b]
	}
	res.Count, res.Found, res.Metrics = det.Count, det.Found, det.Metrics

	for b := Band(0); b < NumBands; b++ {
		path := filepath.Join(cfg.PathResult, fmt.Sprintf("%s_%s.fits", cfg.BandColour(b), ts))
		prov := MasterProvenance{
			Frames:      len(st.Bands[b].Frames),
			Date:        created,
			Corrections: st.Bands[b].Calibration.Applied,
			RunID:       runID,
			Note:        MasterNote,
			Source:      headers[b],
		}
		if err := WriteMasterFits(path, masters[b], prov); err != nil {
			return nil, fmt.Errorf("%s master: %w", b, err)
		}
		st.Bands[b].MasterPath = path
		res.MasterPaths[b] = path
	}

	overlayPath := filepath.Join(cfg.PathResult, OverlayFileName)
	if err := writeOverlay(overlayPath, masters[BandShort], stats[BandShort], st); err != nil {
		return nil, err
	}
	res.OverlayPath = overlayPath

	if err := s.store.Save(st); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	slog.Info("reduction complete", "runID", runID, "sources", st.Count)
	return res, nil
}

// reduceBand produces the master of one band. The returned stack holds the
// registered frames and must be closed by the caller.
func (s *Session) reduceBand(b Band, flatDarks *FrameStack, bs *BandState) (Mat, *FrameStack, error) {
	cfg := s.cfg
	lightDir := cfg.PathLightShort
	darkDir, flatDir := cfg.PathDarkShort, cfg.PathFlatShort
	if b == BandLong {
		lightDir = cfg.PathLightLong
		darkDir, flatDir = cfg.PathDarkLong, cfg.PathFlatLong
	}
	load := LoadOptions{Debayer: cfg.Debayer}

	slog.Info("searching for light frames", "band", b, "colour", bs.Colour, "dir", lightDir)
	paths, err := ListImageFiles(lightDir)
	if err != nil {
		return Mat{}, nil, err
	}
	if len(paths) == 0 {
		return Mat{}, nil, fmt.Errorf("%s band light frames in %q: %w", b, lightDir, ErrNoFrames)
	}
	light, err := LoadStack(b, paths, load)
	if err != nil {
		return Mat{}, nil, err
	}
	ok := false
	defer func() {
		if !ok {
			light.Close()
		}
	}()
	bs.Frames = paths

	darks, err := s.loadOptional(cfg.DoDark, b, darkDir, CorrectionDark)
	if err != nil {
		return Mat{}, nil, err
	}
	defer darks.Close()
	flats, err := s.loadOptional(cfg.DoFlat, b, flatDir, CorrectionFlat)
	if err != nil {
		return Mat{}, nil, err
	}
	defer flats.Close()

	report, err := CalibrateBand(light, CalibrationInput{Darks: darks, Flats: flats, FlatDarks: flatDarks}, cfg.Stages())
	if err != nil {
		return Mat{}, nil, err
	}
	bs.Calibration = report

	stats := light.ComputeStats(cfg.SigmaClip, cfg.ClipIterations)
	if cfg.ReferenceFrame >= light.Len() {
		return Mat{}, nil, &ConfigError{
			Key:    "reference_frame",
			Reason: fmt.Sprintf("%d out of range, %s band has %d frames", cfg.ReferenceFrame, b, light.Len()),
		}
	}
	offsets, err := GetOffset(light, stats, cfg.ReferenceFrame, cfg.RegistrationOptions())
	if err != nil {
		return Mat{}, nil, fmt.Errorf("%s band registration: %w", b, err)
	}
	if err := ShiftStack(light, offsets); err != nil {
		return Mat{}, nil, err
	}
	bs.Offsets = offsets
	bs.FrameStats = stats

	master, err := CreateMaster(light)
	if err != nil {
		return Mat{}, nil, fmt.Errorf("%s band master: %w", b, err)
	}
	bs.MasterStats = SigmaClippedStats(master, cfg.SigmaClip, cfg.ClipIterations)
	slog.Info("created master", "band", b, "frames", light.Len(), "background", bs.MasterStats.String())
	ok = true
	return master, light, nil
}

// loadOptional loads a correction stack. It returns nil when the stage is
// disabled or the directory holds no image files.
// loadFlatDarks loads the darks for flats, which both bands share.
func (s *Session) loadFlatDarks() (*FrameStack, error) {
	return s.loadOptional(s.cfg.DoDarkFlat && s.cfg.DoFlat, BandShared, s.cfg.PathDarkFlat, CorrectionFlatDark)
}

func (s *Session) loadOptional(enabled bool, b Band, dir, stage string) (*FrameStack, error) {
	if !enabled {
		return nil, nil
	}
	paths, err := ListImageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, nil
	}
	stack, err := LoadStack(b, paths, LoadOptions{Debayer: s.cfg.Debayer})
	if err != nil {
		return nil, fmt.Errorf("%s frames: %w", stage, err)
	}
	slog.Info("loaded correction frames", "band", b, "stage", stage, "frames", stack.Len())
	return stack, nil
}

// mutate applies fn to a copy of the committed state, persists it and then
// publishes it. A failing fn or save leaves the committed state unchanged.
func (s *Session) mutate(fn func(st *SessionState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ErrNoSession
	}
	next := s.state.clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.store.Save(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func checkIndex(st *SessionState, index int) error {
	if index < 0 || index >= st.Count {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrSourceIndex, index, st.Count)
	}
	return nil
}

// RecordReference records or supersedes the standard magnitudes of one
// source in both bands and marks it Labeled.
func (s *Session) RecordReference(index int, magShort, magLong float64) error {
	return s.mutate(func(st *SessionState) error {
		if err := checkIndex(st, index); err != nil {
			return err
		}
		refs := NewReferences()
		refs.Restore(st.References)
		if err := refs.SetPair(index, magShort, magLong); err != nil {
			return err
		}
		st.References = refs.Snapshot()
		st.Statuses[index] |= Labeled
		slog.Info("recorded reference", "index", index, "short", magShort, "long", magLong)
		return nil
	})
}

// ToggleSelection flips the Selected bit of each given source.
func (s *Session) ToggleSelection(indices ...int) error {
	return s.mutate(func(st *SessionState) error {
		for _, i := range indices {
			if err := checkIndex(st, i); err != nil {
				return err
			}
		}
		for _, i := range indices {
			st.Statuses[i] = st.Statuses[i].ToggleSelected()
		}
		return nil
	})
}

// ToggleAll flips the Selected bit of every source.
func (s *Session) ToggleAll() error {
	return s.mutate(func(st *SessionState) error {
		for i := range st.Statuses {
			st.Statuses[i] = st.Statuses[i].ToggleSelected()
		}
		return nil
	})
}

// ColourMagnitude fits the transforms against a snapshot of the current
// reference entries.
func (s *Session) ColourMagnitude(reddening float64) (*CMD, *SessionState, error) {
	st, err := s.State()
	if err != nil {
		return nil, nil, err
	}
	cmd, err := ColourMagnitude(st.Fluxes(), st.References, reddening)
	if err != nil {
		return nil, nil, err
	}
	return cmd, st, nil
}

// SaveResult is what Save wrote.
type SaveResult struct {
	CMD       *CMD
	TablePath string
	PlotPath  string
	Rows      int
}

// Save fits the colour-magnitude relation and writes the data table and the
// diagram into path_result.
func (s *Session) Save(reddening float64) (*SaveResult, error) {
	cmd, st, err := s.ColourMagnitude(reddening)
	if err != nil {
		return nil, err
	}
	ts := s.now()
	short, long := s.cfg.ShortColour, s.cfg.LongColour
	tablePath, err := SaveTable(s.cfg.PathResult, ts, cmd, st.Fluxes(), st.Bands[BandShort].Positions, st.Statuses, short, long)
	if err != nil {
		return nil, err
	}
	plotPath := filepath.Join(s.cfg.PathResult,
		fmt.Sprintf("colour_mag_diagram_%s-%s_%s.png", short, long, ts.Format(TimestampLayout)))
	if err := SaveCMDPlot(plotPath, cmd, st.Statuses, short, long); err != nil {
		return nil, err
	}
	return &SaveResult{CMD: cmd, TablePath: tablePath, PlotPath: plotPath, Rows: len(CMDSeries(cmd, st.Statuses))}, nil
}

// OffsetTable names one of the persisted offset tables.
type OffsetTable string

const (
	OffsetsShort  OffsetTable = "short"
	OffsetsLong   OffsetTable = "long"
	OffsetsMaster OffsetTable = "master"
)

// Offsets returns a persisted offset table. The master table has two
// entries: the short master (always zero) and the long master.
func (s *Session) Offsets(which OffsetTable) ([]Offset, error) {
	st, err := s.State()
	if err != nil {
		return nil, err
	}
	switch which {
	case OffsetsShort:
		return st.Bands[BandShort].Offsets, nil
	case OffsetsLong:
		return st.Bands[BandLong].Offsets, nil
	case OffsetsMaster:
		return []Offset{{}, st.MasterOffset}, nil
	}
	return nil, fmt.Errorf("unknown offset table %q, want short, long or master", which)
}

// RenderOverlay re-reads the short master and draws the current statuses.
func (s *Session) RenderOverlay(path string) error {
	st, err := s.State()
	if err != nil {
		return err
	}
	master, err := ReadFits(st.Bands[BandShort].MasterPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("short master of run %s is missing: %w", st.RunID, err)
	}
	if err != nil {
		return err
	}
	m := master.Mat()
	defer m.Close()
	return writeOverlay(path, m, st.Bands[BandShort].MasterStats, st)
}

func writeOverlay(path string, master Mat, stats FrameStats, st *SessionState) error {
	display := DisplayArray(master, stats)
	img, err := RenderOverlay(display, st.Bands[BandShort].Positions, st.Statuses, OverlayCircleFactor*st.ApertureRadius)
	if err != nil {
		return err
	}
	return WriteImage(path, img)
}
