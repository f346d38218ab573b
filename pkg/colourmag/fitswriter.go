package colourmag

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/astrogo/fitsio"
)

// structuralKeys are regenerated by the writer and never copied from the
// source header.
var structuralKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true,
	"NAXIS3": true, "EXTEND": true, "BZERO": true, "BSCALE": true, "END": true,
	"SNAPSHOT": true, "DATE": true, "CALIB": true, "RUNID": true, "NOTE": true,
	"BAYERPAT": true,
}

// MasterProvenance describes how a master frame was produced.
type MasterProvenance struct {
	Frames      int
	Date        time.Time
	Corrections []string
	RunID       string
	Note        string
	// Source is the header of the first raw frame of the band; nil when the
	// frames had no FITS header.
	Source *FitsMetadata
}

func (p MasterProvenance) calibString() string {
	if len(p.Corrections) == 0 {
		return "none"
	}
	return strings.Join(p.Corrections, ",")
}

// WriteMasterFits writes img as a 32-bit float FITS primary image carrying
// the provenance cards.
// Close errors are returned, so a master is only reported written once it
// has been flushed.
func WriteMasterFits(path string, img Mat, prov MasterProvenance) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating FITS file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing FITS file: %w", cerr)
		}
	}()

	fits, err := fitsio.Create(f)
	if err != nil {
		return fmt.Errorf("creating FITS stream: %w", err)
	}
	defer func() {
		if cerr := fits.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing FITS stream: %w", cerr)
		}
	}()

	hdu := fitsio.NewImage(-32, []int{img.Cols(), img.Rows()})
	defer hdu.Close()

	cards := make([]fitsio.Card, 0, 8)
	if prov.Source != nil {
		for _, c := range prov.Source.Cards {
			if structuralKeys[c.Key] || c.Key == "COMMENT" || c.Key == "HISTORY" || len(c.Key) > 8 {
				continue
			}
			v := c.Value()
			if str, ok := v.(string); ok {
				v = truncateCard(str)
			}
			cards = append(cards, fitsio.Card{Name: c.Key, Value: v})
		}
	}
	cards = append(cards,
		fitsio.Card{Name: "BZERO", Value: 0.0, Comment: "physical = stored"},
		fitsio.Card{Name: "SNAPSHOT", Value: prov.Frames, Comment: "frames stacked"},
		fitsio.Card{Name: "DATE", Value: prov.Date.UTC().Format(time.RFC3339), Comment: "master creation time"},
		fitsio.Card{Name: "CALIB", Value: prov.calibString(), Comment: "corrections applied"},
		fitsio.Card{Name: "RUNID", Value: prov.RunID, Comment: "reduction run"},
		fitsio.Card{Name: "NOTE", Value: truncateCard(prov.Note), Comment: ""},
	)
	if err := hdu.Header().Append(cards...); err != nil {
		return fmt.Errorf("appending FITS header cards: %w", err)
	}

	pixels := make([]float32, img.Rows()*img.Cols())
	copy(pixels, img.DataFloat32())
	if err := hdu.Write(pixels); err != nil {
		return fmt.Errorf("writing FITS pixel data: %w", err)
	}
	if err := fits.Write(hdu); err != nil {
		return fmt.Errorf("writing FITS image: %w", err)
	}

	slog.Debug("wrote master", "path", path, "frames", prov.Frames, "calib", prov.calibString())
	return nil
}

// truncateCard keeps string values within one 80 byte header record.
func truncateCard(s string) string {
	const maxLen = 60
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
