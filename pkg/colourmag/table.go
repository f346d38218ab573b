package colourmag

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout formats the timestamps embedded in output file names.
const TimestampLayout = "2006-01-02T15-04-05"

// TableFileName returns the data table name for a band pair.
func TableFileName(shortColour, longColour string, ts time.Time) string {
	return fmt.Sprintf("colour_mag_diagram_%s-%s_%s.dat", shortColour, longColour, ts.Format(TimestampLayout))
}

// WriteTable writes one row per selected source with defined magnitudes. x
// and y are taken from the short band positions.
func WriteTable(w io.Writer, cmd *CMD, fluxes Fluxes, positions []Point2d, statuses []StarStatus, shortColour, longColour string) (int, error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#ID\tx[px]\ty[px]\tflux_%s[ADU]\tflux_%s[ADU]\t%s_mag\t%s_mag\n",
		shortColour, longColour, shortColour, longColour)

	rows := 0
	for _, p := range cmd.Points {
		i := p.Index
		if !p.Valid() || i >= len(statuses) || i >= len(positions) || !statuses[i].Has(Selected) {
			continue
		}
		fmt.Fprintf(bw, "%03d\t%5.1f\t%5.1f\t%10.4f\t%10.4f\t%8.4f\t%8.4f\n",
			i, positions[i].X, positions[i].Y,
			fluxes[BandShort][i], fluxes[BandLong][i],
			p.Mag[BandShort], p.Mag[BandLong])
		rows++
	}
	if err := bw.Flush(); err != nil {
		return rows, fmt.Errorf("writing table: %w", err)
	}
	return rows, nil
}

// SaveTable writes the data table into dir and returns its path.
func SaveTable(dir string, ts time.Time, cmd *CMD, fluxes Fluxes, positions []Point2d, statuses []StarStatus, shortColour, longColour string) (string, error) {
	path := filepath.Join(dir, TableFileName(shortColour, longColour, ts))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating table: %w", err)
	}
	defer f.Close()
	if _, err := WriteTable(f, cmd, fluxes, positions, statuses, shortColour, longColour); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing table: %w", err)
	}
	return path, nil
}
