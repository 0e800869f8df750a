//go:build purego || js

package main

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/tiff"

	cs "contsub/pkg/contsub"
)

// loadNonFitsImage returns one plane for grey images and R, G, B planes for
// colour ones, scaled to [0, 1].
func loadNonFitsImage(path string) ([]cs.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		pixels := make([]uint16, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				pixels[y*w+x] = uint16(g)
			}
		}
		return []cs.Mat{cs.ToFloat32Mat(pixels, 16, w, h)}, nil
	}

	r := make([]uint16, w*h)
	g := make([]uint16, w*h)
	b := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cr, cg, cb, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			r[i], g[i], b[i] = uint16(cr), uint16(cg), uint16(cb)
		}
	}
	return []cs.Mat{
		cs.ToFloat32Mat(r, 16, w, h),
		cs.ToFloat32Mat(g, 16, w, h),
		cs.ToFloat32Mat(b, 16, w, h),
	}, nil
}
