//go:build !purego && !js

package colourmag

import (
	"fmt"

	"gocv.io/x/gocv"
)

func loadNonFitsImage(path string) (Mat, error) {
	src := gocv.IMRead(path, gocv.IMReadAnyDepth|gocv.IMReadAnyColor)
	if src.Empty() {
		return Mat{}, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()

	gray := src
	if src.Channels() > 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		code := gocv.ColorBGRToGray
		if src.Channels() == 4 {
			code = gocv.ColorBGRAToGray
		}
		gocv.CvtColor(src, &gray, code)
	}

	out := NewMat()
	gray.ConvertTo(&out.m, gocv.MatTypeCV32F)
	return out, nil
}
