package contsub

import "fmt"

// DebayerRGGB performs bilinear interpolation on a raw RGGB Bayer-pattern
// mosaic and returns full-resolution red, green and blue planes.
//
// RGGB layout (row-major, 0-indexed):
//
//	(even row, even col) = R
//	(even row, odd  col) = G  (Gr)
//	(odd  row, even col) = G  (Gb)
//	(odd  row, odd  col) = B
//
// Edge pixels use clamped (replicated) neighbor lookups.
func DebayerRGGB(data []float32, width, height int) (r, g, b []float32) {
	n := width * height
	r = make([]float32, n)
	g = make([]float32, n)
	b = make([]float32, n)

	// clamp helpers
	clampX := func(x int) int {
		if x < 0 {
			return 0
		}
		if x >= width {
			return width - 1
		}
		return x
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= height {
			return height - 1
		}
		return y
	}
	px := func(x, y int) float32 {
		return data[clampY(y)*width+clampX(x)]
	}
	cross := func(x, y int) float32 {
		return (px(x-1, y) + px(x+1, y) + px(x, y-1) + px(x, y+1)) / 4
	}
	diag := func(x, y int) float32 {
		return (px(x-1, y-1) + px(x+1, y-1) + px(x-1, y+1) + px(x+1, y+1)) / 4
	}

	for y := 0; y < height; y++ {
		evenRow := y%2 == 0
		for x := 0; x < width; x++ {
			evenCol := x%2 == 0
			i := y*width + x

			switch {
			case evenRow && evenCol:
				// Red pixel: have R, need G and B
				r[i] = px(x, y)
				g[i] = cross(x, y)
				b[i] = diag(x, y)

			case evenRow && !evenCol:
				// Green on red row (Gr): need R and B
				r[i] = (px(x-1, y) + px(x+1, y)) / 2
				g[i] = px(x, y)
				b[i] = (px(x, y-1) + px(x, y+1)) / 2

			case !evenRow && evenCol:
				// Green on blue row (Gb): need R and B
				r[i] = (px(x, y-1) + px(x, y+1)) / 2
				g[i] = px(x, y)
				b[i] = (px(x-1, y) + px(x+1, y)) / 2

			default:
				// Blue pixel: have B, need R and G
				r[i] = diag(x, y)
				g[i] = cross(x, y)
				b[i] = px(x, y)
			}
		}
	}

	return r, g, b
}

// DebayerToRGB debayers a mosaic plane into an RGB image.
func DebayerToRGB(mosaic Mat) (*RGB, error) {
	width, height := mosaic.Cols(), mosaic.Rows()
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("bayer mosaic too small: %dx%d", width, height)
	}
	r, g, b := DebayerRGGB(mosaic.DataFloat32()[:width*height], width, height)

	img := &RGB{}
	var err error
	if img.R, err = NewMatFromData(r, width, height); err != nil {
		return nil, err
	}
	if img.G, err = NewMatFromData(g, width, height); err != nil {
		img.R.Close()
		return nil, err
	}
	if img.B, err = NewMatFromData(b, width, height); err != nil {
		img.R.Close()
		img.G.Close()
		return nil, err
	}
	return img, nil
}
