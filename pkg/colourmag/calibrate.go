package colourmag

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Correction names recorded in calibration reports and master headers.
const (
	CorrectionDark     = "dark"
	CorrectionFlat     = "flat"
	CorrectionFlatDark = "flat-dark"
)

// DarkCorrection subtracts the mean dark frame from every frame in place.
func DarkCorrection(frames, darks *FrameStack) error {
	if err := frames.checkShape(darks, "dark correction"); err != nil {
		return err
	}
	master, err := CreateMaster(darks)
	if err != nil {
		return fmt.Errorf("dark master: %w", err)
	}
	defer master.Close()

	dark := master.DataFloat32()
	for _, f := range frames.Frames {
		data := f.DataFloat32()
		for i := range data {
			data[i] -= dark[i]
		}
	}
	frames.Stats = nil
	return nil
}

// FlatCorrection divides every frame in place by the mean flat normalized to
// its own mean, which preserves the overall flux scale. Pixels where the
// normalized flat is not positive are left unchanged.
func FlatCorrection(frames, flats *FrameStack) error {
	if err := frames.checkShape(flats, "flat correction"); err != nil {
		return err
	}
	master, err := CreateMaster(flats)
	if err != nil {
		return fmt.Errorf("flat master: %w", err)
	}
	defer master.Close()

	flat := make([]float64, len(master.DataFloat32()))
	for i, v := range master.DataFloat32() {
		flat[i] = float64(v)
	}
	mean := floats.Sum(flat) / float64(len(flat))
	if mean == 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return fmt.Errorf("flat correction: master flat mean is %v", mean)
	}
	floats.Scale(1/mean, flat)

	skipped := 0
	for _, f := range frames.Frames {
		data := f.DataFloat32()
		for i := range data {
			if flat[i] <= 0 || math.IsNaN(flat[i]) {
				skipped++
				continue
			}
			data[i] = float32(float64(data[i]) / flat[i])
		}
	}
	if skipped > 0 {
		slog.Warn("flat has non-positive pixels, left uncorrected", "band", frames.Band, "pixels", skipped)
	}
	frames.Stats = nil
	return nil
}

// CalibrationInput holds the optional correction stacks of one band. A nil
// stack means the stage is disabled or no files were found.
type CalibrationInput struct {
	Darks     *FrameStack
	Flats     *FrameStack
	FlatDarks *FrameStack
}

// CalibrationStages selects which corrections are requested.
type CalibrationStages struct {
	Dark     bool
	Flat     bool
	FlatDark bool
}

// CalibrationReport lists what was applied to a band and which stages were
// skipped for lack of frames.
type CalibrationReport struct {
	Band    Band     `json:"band"`
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped,omitempty"`
}

// CalibrateBand applies the configured corrections to light in the order
// flat-darks, flats, science.
func CalibrateBand(light *FrameStack, in CalibrationInput, want CalibrationStages) (CalibrationReport, error) {
	report := CalibrationReport{Band: light.Band}
	skip := func(stage string) {
		report.Skipped = append(report.Skipped, stage)
		slog.Info("no correction frames found, stage skipped", "band", light.Band, "stage", stage)
	}

	if want.FlatDark && want.Flat {
		switch {
		case in.Flats == nil:
			// reported below with the flat stage
		case in.FlatDarks == nil:
			skip(CorrectionFlatDark)
		default:
			if err := DarkCorrection(in.Flats, in.FlatDarks); err != nil {
				return report, fmt.Errorf("%s band flat-dark: %w", light.Band, err)
			}
			report.Applied = append(report.Applied, CorrectionFlatDark)
		}
	}

	if want.Dark {
		if in.Darks == nil {
			skip(CorrectionDark)
		} else {
			if err := DarkCorrection(light, in.Darks); err != nil {
				return report, fmt.Errorf("%s band: %w", light.Band, err)
			}
			report.Applied = append(report.Applied, CorrectionDark)
		}
	}

	if want.Flat {
		if in.Flats == nil {
			skip(CorrectionFlat)
		} else {
			if err := FlatCorrection(light, in.Flats); err != nil {
				return report, fmt.Errorf("%s band: %w", light.Band, err)
			}
			report.Applied = append(report.Applied, CorrectionFlat)
		}
	}
	return report, nil
}
