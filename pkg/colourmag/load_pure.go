//go:build purego || js

package colourmag

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"
)

func loadNonFitsImage(path string) (Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return Mat{}, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Mat{}, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	m := NewMatWithSize(h, w)
	dest := m.DataFloat32()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			if g, ok := c.(color.Gray16); ok {
				dest[y*w+x] = float32(g.Y)
				continue
			}
			r, g, b, _ := c.RGBA()
			// Rec. 601 luminance in the 16-bit range
			dest[y*w+x] = float32((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
		}
	}

	return m, nil
}
