package contsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebayerRGGBInterior(t *testing.T) {
	const w, h = 8, 6
	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			switch {
			case y%2 == 0 && x%2 == 0:
				data[y*w+x] = 100
			case y%2 == 1 && x%2 == 1:
				data[y*w+x] = 300
			default:
				data[y*w+x] = 200
			}
		}
	}

	r, g, b := DebayerRGGB(data, w, h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			assert.Equal(t, float32(100), r[i], "R at %d,%d", x, y)
			assert.Equal(t, float32(200), g[i], "G at %d,%d", x, y)
			assert.Equal(t, float32(300), b[i], "B at %d,%d", x, y)
		}
	}
}

func TestDebayerToRGB(t *testing.T) {
	mosaic := constMat(t, 7, 4, 4)
	rgb, err := DebayerToRGB(mosaic)
	require.NoError(t, err)
	defer rgb.Close()
	assert.Equal(t, 4, rgb.Width())
	assert.Equal(t, 4, rgb.Height())
	assert.Equal(t, float32(7), plane(rgb.B)[5])

	_, err = DebayerToRGB(constMat(t, 7, 1, 4))
	assert.Error(t, err)
}
