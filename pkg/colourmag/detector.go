/*
Extracted from HocusFocus plugin by George Hilios.
Original Copyright © 2021 George Hilios <ghilios+NINA@googlemail.com>
Licensed under Mozilla Public License 2.0.
Ported to Go.
*/

package colourmag

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// momentClip is the noise multiple a pixel must exceed to enter the
// centroid and width moments.
const momentClip = 2.0

type peakCandidate struct {
	X, Y int
	Peak float64
}

// Detect finds point sources in one master frame. stats is the background
// estimate of src. Stars are returned by descending significance.
func Detect(ctx context.Context, src Mat, stats FrameStats, p *StarDetectorParams) (*StarDetectorResult, error) {
	if p.FWHM <= 0 {
		return nil, fmt.Errorf("FWHM must be positive, got %f", p.FWHM)
	}
	if p.Ratio <= 0 || p.Ratio > 1 {
		return nil, fmt.Errorf("ratio must be in (0,1], got %f", p.Ratio)
	}

	maybeSaveText(p.SaveIntermediateFilesPath, "00-params.txt",
		fmt.Sprintf("Params: FWHM=%f, Ratio=%f, Threshold=%f, MinSeparation=%f\nBackground: %s",
			p.FWHM, p.Ratio, p.Threshold, p.MinSeparation, stats))

	metrics := &StarDetectorMetrics{}

	// Step 1: Hotpixel filtering
	work := src.Clone()
	defer work.Close()
	if p.HotpixelFiltering && stats.StdDev > 0 {
		metrics.HotpixelCount = hotpixelFilter(&work, p.HotpixelSigma*stats.StdDev)
	}
	maybeSaveImage(work, p.SaveIntermediateFilesPath, "01-hotpixel-filtered.tif")

	// Step 2: Matched filter
	smoothed := NewMat()
	defer smoothed.Close()
	ConvolveGaussian(&work, &smoothed, p.sigma())
	maybeSaveImage(smoothed, p.SaveIntermediateFilesPath, "02-smoothed.tif")

	// Step 3: Local maxima above the noise threshold
	peaks, err := findPeaks(ctx, work, smoothed, stats, p, metrics)
	if err != nil {
		return nil, err
	}

	// Step 4: Shape measurement
	stars := make([]*Star, 0, len(peaks))
	for _, pk := range peaks {
		star := evaluateStarCandidate(work, stats, pk, p, metrics)
		if star != nil {
			stars = append(stars, star)
		}
	}

	sort.SliceStable(stars, func(i, j int) bool {
		a, b := stars[i], stars[j]
		if a.Significance != b.Significance {
			return a.Significance > b.Significance
		}
		if a.Center.Y != b.Center.Y {
			return a.Center.Y < b.Center.Y
		}
		return a.Center.X < b.Center.X
	})
	metrics.TotalDetected = len(stars)
	if p.MaxStars > 0 && len(stars) > p.MaxStars {
		metrics.Truncated = len(stars) - p.MaxStars
		stars = stars[:p.MaxStars]
	}

	maybeSaveText(p.SaveIntermediateFilesPath, "03-metrics.txt", metrics.String())
	return &StarDetectorResult{DetectedStars: stars, Metrics: metrics}, nil
}

// findPeaks returns the local maxima of smoothed whose value in src exceeds
// the background by Threshold standard deviations. Plateaus resolve to the
// first pixel in raster order.
func findPeaks(ctx context.Context, src, smoothed Mat, stats FrameStats, p *StarDetectorParams, metrics *StarDetectorMetrics) ([]peakCandidate, error) {
	width, height := smoothed.Cols(), smoothed.Rows()
	sm := smoothed.DataFloat32()
	raw := src.DataFloat32()
	half := int(math.Round(p.MinSeparation / 2))
	if half < 1 {
		half = 1
	}
	floor := float32(stats.Median)
	threshold := p.Threshold * stats.StdDev

	peaks := make([]peakCandidate, 0, 256)
	for y := 0; y < height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < width; x++ {
			v := sm[y*width+x]
			if v <= floor || !isLocalMax(sm, width, height, x, y, half) {
				continue
			}
			metrics.PeakCandidates++
			peak := float64(raw[y*width+x]) - stats.Median
			if peak < threshold || peak <= 0 {
				metrics.BelowThreshold++
				continue
			}
			peaks = append(peaks, peakCandidate{X: x, Y: y, Peak: peak})
		}
	}
	return peaks, nil
}

func isLocalMax(data []float32, width, height, x, y, half int) bool {
	v := data[y*width+x]
	for yy := max(0, y-half); yy <= min(height-1, y+half); yy++ {
		row := data[yy*width:]
		for xx := max(0, x-half); xx <= min(width-1, x+half); xx++ {
			if xx == x && yy == y {
				continue
			}
			n := row[xx]
			if n > v {
				return false
			}
			// earlier pixel in raster order wins a tie
			if n == v && (yy < y || (yy == y && xx < x)) {
				return false
			}
		}
	}
	return true
}

// evaluateStarCandidate measures centroid and second moments in a box
// around the peak and applies the border, roundness and width checks.
func evaluateStarCandidate(src Mat, stats FrameStats, pk peakCandidate, p *StarDetectorParams, metrics *StarDetectorMetrics) *Star {
	width, height := src.Cols(), src.Rows()
	h := p.boxHalfSize()
	margin := p.BorderMargin
	box := image.Rect(pk.X-h, pk.Y-h, pk.X+h+1, pk.Y+h+1)
	if box.Min.X < margin || box.Min.Y < margin || box.Max.X > width-margin || box.Max.Y > height-margin {
		metrics.OnBorder++
		return nil
	}

	data := src.DataFloat32()
	clipLevel := momentClip * stats.StdDev
	var sw, sx, sy float64
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			w := float64(data[y*width+x]) - stats.Median
			if w <= clipLevel {
				continue
			}
			sw += w
			sx += w * float64(x)
			sy += w * float64(y)
		}
	}
	if sw <= 0 {
		metrics.Degenerate++
		return nil
	}
	cx, cy := sx/sw, sy/sw

	var mxx, myy, mxy float64
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			w := float64(data[y*width+x]) - stats.Median
			if w <= clipLevel {
				continue
			}
			dx, dy := float64(x)-cx, float64(y)-cy
			mxx += w * dx * dx
			myy += w * dy * dy
			mxy += w * dx * dy
		}
	}
	mxx /= sw
	myy /= sw
	mxy /= sw

	mean := (mxx + myy) / 2
	spread := math.Sqrt((mxx-myy)*(mxx-myy)/4 + mxy*mxy)
	lMax, lMin := mean+spread, mean-spread
	if lMin <= 0 || lMax <= 0 {
		metrics.Degenerate++
		return nil
	}

	roundness := math.Sqrt(lMin / lMax)
	if roundness < p.Ratio {
		metrics.TooElongated++
		return nil
	}

	fwhm := math.Sqrt(mean) * sigmaToFWHM
	tolerance := 1 + p.MaxFWHMDeviation
	if fwhm < p.FWHM/tolerance || fwhm > p.FWHM*tolerance {
		metrics.WrongWidth++
		return nil
	}

	return &Star{
		Center:          Point2d{X: cx, Y: cy},
		StarBoundingBox: box,
		Peak:            pk.Peak,
		Significance:    pk.Peak / stats.StdDev,
		Roundness:       roundness,
		FWHM:            fwhm,
	}
}

// DetectionResult is the per-band outcome of DetectStars after count
// negotiation. Positions are index-aligned across bands by rank.
type DetectionResult struct {
	Count     int
	Stars     [NumBands][]*Star
	Positions [NumBands][]Point2d
	// Found is the candidate count of each band before truncation.
	Found   [NumBands]int
	Metrics [NumBands]*StarDetectorMetrics
}

// DetectStars detects sources in both band masters independently and
// truncates both lists to the smaller count.
func DetectStars(ctx context.Context, masters [NumBands]Mat, stats [NumBands]FrameStats, p *StarDetectorParams) (*DetectionResult, error) {
	res := &DetectionResult{}
	for b := 0; b < NumBands; b++ {
		bp := p
		if p.SaveIntermediateFilesPath != "" {
			cp := *p
			cp.SaveIntermediateFilesPath = filepath.Join(p.SaveIntermediateFilesPath, Band(b).String())
			if err := os.MkdirAll(cp.SaveIntermediateFilesPath, 0755); err != nil {
				slog.Warn("intermediate files disabled", "path", cp.SaveIntermediateFilesPath, "err", err)
				cp.SaveIntermediateFilesPath = ""
			}
			bp = &cp
		}
		r, err := Detect(ctx, masters[b], stats[b], bp)
		if err != nil {
			return nil, fmt.Errorf("%s band detection: %w", Band(b), err)
		}
		res.Stars[b] = r.DetectedStars
		res.Found[b] = len(r.DetectedStars)
		res.Metrics[b] = r.Metrics
		slog.Info("detected sources", "band", Band(b), "count", len(r.DetectedStars), "metrics", r.Metrics.String())
	}

	res.Count = min(res.Found[BandShort], res.Found[BandLong])
	minStars := max(p.MinStars, 1)
	if res.Count < minStars {
		return nil, fmt.Errorf("%w: %d in %s band, %d in %s band, need %d",
			ErrTooFewSources, res.Found[BandShort], BandShort, res.Found[BandLong], BandLong, minStars)
	}
	for b := 0; b < NumBands; b++ {
		res.Stars[b] = res.Stars[b][:res.Count]
		res.Positions[b] = (&StarDetectorResult{DetectedStars: res.Stars[b]}).Positions()
	}
	return res, nil
}

func maybeSaveImage(img Mat, savePath, filename string) {
	if savePath == "" {
		return
	}
	if _, err := os.Stat(savePath); os.IsNotExist(err) {
		return
	}
	imWriteMat(filepath.Join(savePath, filename), img)
}

func maybeSaveText(savePath, filename, text string) {
	if savePath == "" {
		return
	}
	if _, err := os.Stat(savePath); os.IsNotExist(err) {
		return
	}
	if err := os.WriteFile(filepath.Join(savePath, filename), []byte(text), 0644); err != nil {
		slog.Debug("saving intermediate file", "file", filename, "err", err)
	}
}
