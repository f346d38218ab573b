package colourmag

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExtensions = map[string]bool{
	".fit":  true,
	".fits": true,
	".fts":  true,
	".tif":  true,
	".tiff": true,
	".png":  true,
}

func isFitsPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fit", ".fits", ".fts":
		return true
	}
	return false
}

// ListImageFiles returns the sorted image files directly inside dir. A
// missing directory or one without images yields an empty list.
func ListImageFiles(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadOptions controls how raw frames are decoded.
type LoadOptions struct {
	// Debayer collapses colour sensor mosaics to luminance using the
	// BAYERPAT keyword (RGGB when absent).
	Debayer bool
}

// LoadFrame reads one image file into a float32 Mat in ADU. The returned
// header is nil for non-FITS files.
func LoadFrame(path string, opts LoadOptions) (Mat, *FitsMetadata, error) {
	var (
		m    Mat
		meta *FitsMetadata
	)
	if isFitsPath(path) {
		data, err := ReadFits(path)
		if err != nil {
			return Mat{}, nil, fmt.Errorf("loading %s: %w", path, err)
		}
		m, meta = data.Mat(), data.Metadata
	} else {
		img, err := loadNonFitsImage(path)
		if err != nil {
			return Mat{}, nil, fmt.Errorf("loading %s: %w", path, err)
		}
		m = img
	}

	if opts.Debayer {
		lum, err := debayerMat(m, meta.BayerPattern())
		m.Close()
		if err != nil {
			return Mat{}, nil, fmt.Errorf("debayering %s: %w", path, err)
		}
		m = lum
	}
	return m, meta, nil
}

// LoadStack loads every path into one stack. All frames must share the
// pixel shape of the first; the first frame's header is kept for provenance.
func LoadStack(band Band, paths []string, opts LoadOptions) (*FrameStack, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s band: %w", band, ErrNoFrames)
	}
	stack := &FrameStack{Band: band, Paths: append([]string(nil), paths...)}
	for i, p := range paths {
		m, meta, err := LoadFrame(p, opts)
		if err != nil {
			stack.Close()
			return nil, err
		}
		if f := meta.Filter(); i == 0 {
			stack.Header, stack.Filter = meta, f
		} else if f != "" && f != stack.Filter {
			slog.Warn("frame filter differs from first frame", "band", band, "file", filepath.Base(p), "filter", f, "first", stack.Filter)
		}
		if i > 0 && !sameShape(m, stack.Frames[0]) {
			err := &ShapeError{
				Stage: "load " + filepath.Base(p),
				Want:  [2]int{stack.Frames[0].Rows(), stack.Frames[0].Cols()},
				Got:   [2]int{m.Rows(), m.Cols()},
			}
			m.Close()
			stack.Close()
			return nil, err
		}
		stack.Frames = append(stack.Frames, m)
	}
	slog.Debug("loaded stack", "band", band, "frames", len(paths), "filter", stack.Filter,
		"width", stack.Cols(), "height", stack.Rows())
	return stack, nil
}
