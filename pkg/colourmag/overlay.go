package colourmag

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayCircleFactor scales r_aperture*FWHM to the drawn circle radius.
const OverlayCircleFactor = 1.5

// RenderOverlay draws the display image with a circle and index label
// around every source, coloured by its status.
func RenderOverlay(display *image.Gray16, positions []Point2d, statuses []StarStatus, radius float64) (*image.RGBA, error) {
	if len(statuses) != len(positions) {
		return nil, fmt.Errorf("got %d statuses for %d sources", len(statuses), len(positions))
	}
	img := image.NewRGBA(display.Bounds())
	draw.Draw(img, img.Bounds(), display, display.Bounds().Min, draw.Src)

	face := basicfont.Face7x13
	r := int(math.Round(radius))
	if r < 2 {
		r = 2
	}
	for i, p := range positions {
		style := StyleFor(statuses[i])
		cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
		drawCircle(img, cx, cy, r, style.Colour)
		drawCircle(img, cx, cy, r+1, style.Colour)
		drawText(img, face, fmt.Sprintf("%d", i), cx+r+2, cy-r, style.Colour)
	}
	return img, nil
}

// WriteImage encodes img as JPEG for .jpg/.jpeg paths and PNG otherwise.
func WriteImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// drawText draws a string at (x, y) using the given font face.
func drawText(img *image.RGBA, face font.Face, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawCircle draws a circle outline using midpoint algorithm.
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		img.Set(cx+x, cy+y, c)
		img.Set(cx+y, cy+x, c)
		img.Set(cx-y, cy+x, c)
		img.Set(cx-x, cy+y, c)
		img.Set(cx-x, cy-y, c)
		img.Set(cx-y, cy-x, c)
		img.Set(cx+y, cy-x, c)
		img.Set(cx+x, cy-y, c)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}
