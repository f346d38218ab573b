package colourmag

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SessionFileName is the name of the persisted session inside path_result.
const SessionFileName = "session.json"

// BandState is the persisted reduction outcome of one band.
type BandState struct {
	Colour      string            `json:"colour"`
	Frames      []string          `json:"frames"`
	Offsets     []Offset          `json:"offsets"`
	FrameStats  []FrameStats      `json:"frame_stats"`
	MasterPath  string            `json:"master_path"`
	MasterStats FrameStats        `json:"master_stats"`
	Calibration CalibrationReport `json:"calibration"`
	Found       int               `json:"found"`
	Positions   []Point2d         `json:"positions"`
	Fluxes      []float64         `json:"fluxes"`
}

// SessionState is everything later commands need from a reduction run.
type SessionState struct {
	RunID   string              `json:"run_id"`
	Created time.Time           `json:"created"`
	Bands   [NumBands]BandState `json:"bands"`
	// MasterOffset aligned the long master onto the short master.
	MasterOffset   Offset       `json:"master_offset"`
	ApertureRadius float64      `json:"aperture_radius"`
	Count          int          `json:"count"`
	Statuses       []StarStatus `json:"statuses"`
	References     []RefEntry   `json:"references"`
}

// Fluxes returns the flux table.
func (st *SessionState) Fluxes() Fluxes {
	return Fluxes{st.Bands[BandShort].Fluxes, st.Bands[BandLong].Fluxes}
}

// clone returns a deep copy of the mutable tables.
func (st *SessionState) clone() *SessionState {
	c := *st
	c.Statuses = append([]StarStatus(nil), st.Statuses...)
	c.References = append([]RefEntry(nil), st.References...)
	return &c
}

// FSStore persists the session as JSON in a directory.
//
// Writes go to a temporary file that is renamed over the previous session,
// so a failed save leaves the old file intact.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a store rooted at baseDir, creating it if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (fs *FSStore) path() string {
	return filepath.Join(fs.baseDir, SessionFileName)
}

// Save atomically replaces the persisted session.
func (fs *FSStore) Save(st *SessionState) error {
	if st == nil {
		return fmt.Errorf("session state cannot be nil")
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	tempPath := fs.path() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp session file: %w", err)
	}
	if err := os.Rename(tempPath, fs.path()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename session file: %w", err)
	}

	slog.Debug("session saved", "runID", st.RunID, "path", fs.path())
	return nil
}

// Load reads the persisted session. A missing file is a *NotFoundError.
func (fs *FSStore) Load() (*SessionState, error) {
	path := fs.path()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{Path: path}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	if len(st.Statuses) != st.Count {
		return nil, fmt.Errorf("corrupt session %s: %d statuses for %d sources", path, len(st.Statuses), st.Count)
	}

	slog.Debug("session loaded", "runID", st.RunID, "path", path)
	return &st, nil
}
