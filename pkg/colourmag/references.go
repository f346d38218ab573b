package colourmag

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// RefKey identifies one reference entry.
type RefKey struct {
	Band  Band `json:"band"`
	Index int  `json:"index"`
}

// RefEntry is a standard-catalog magnitude attached to one source and band.
type RefEntry struct {
	Band      Band    `json:"band"`
	Index     int     `json:"index"`
	Magnitude float64 `json:"magnitude"`
}

// References holds at most one standard magnitude per (band, source). It is
// safe for concurrent use.
type References struct {
	mu      sync.RWMutex
	entries map[RefKey]float64
}

// NewReferences returns an empty reference set.
func NewReferences() *References {
	return &References{entries: make(map[RefKey]float64)}
}

// Set records or supersedes the entry for (band, index).
func (r *References) Set(band Band, index int, mag float64) error {
	if !band.Valid() {
		return fmt.Errorf("unknown band %d", band)
	}
	if !isFinite(mag) {
		return ErrInvalidMagnitude
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[RefKey{Band: band, Index: index}] = mag
	return nil
}

// SetPair records both bands of one source in a single update.
func (r *References) SetPair(index int, magShort, magLong float64) error {
	if !isFinite(magShort) || !isFinite(magLong) {
		return ErrInvalidMagnitude
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[RefKey{Band: BandShort, Index: index}] = magShort
	r.entries[RefKey{Band: BandLong, Index: index}] = magLong
	return nil
}

// Get returns the entry for (band, index).
func (r *References) Get(band Band, index int) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entries[RefKey{Band: band, Index: index}]
	return m, ok
}

func (r *References) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the entries sorted by band then index.
func (r *References) Snapshot() []RefEntry {
	r.mu.RLock()
	out := make([]RefEntry, 0, len(r.entries))
	for k, m := range r.entries {
		out = append(out, RefEntry{Band: k.Band, Index: k.Index, Magnitude: m})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Band != out[j].Band {
			return out[i].Band < out[j].Band
		}
		return out[i].Index < out[j].Index
	})
	return out
}

// Restore replaces every entry with entries.
func (r *References) Restore(entries []RefEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[RefKey]float64, len(entries))
	for _, e := range entries {
		r.entries[RefKey{Band: e.Band, Index: e.Index}] = e.Magnitude
	}
}

// ParseMagnitude parses user input for a reference magnitude.
func ParseMagnitude(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || !isFinite(v) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMagnitude, text)
	}
	return v, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
