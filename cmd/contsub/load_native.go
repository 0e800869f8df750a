//go:build !purego && !js

package main

import (
	"fmt"

	"gocv.io/x/gocv"

	cs "contsub/pkg/contsub"
)

// loadNonFitsImage returns one plane for grey images and R, G, B planes for
// colour ones, scaled to [0, 1].
func loadNonFitsImage(path string) ([]cs.Mat, error) {
	src := gocv.IMRead(path, gocv.IMReadUnchanged)
	if src.Empty() {
		return nil, fmt.Errorf("could not load image: %s", path)
	}
	defer src.Close()

	w, h := src.Cols(), src.Rows()
	maxVal := 255.0
	if src.ElemSize()/src.Channels() == 2 {
		maxVal = 65535.0
	}

	var channels []gocv.Mat
	switch src.Channels() {
	case 1:
		channels = []gocv.Mat{src.Clone()}
	case 3, 4:
		split := gocv.Split(src)
		// OpenCV stores BGR(A)
		channels = []gocv.Mat{split[2], split[1], split[0]}
		for _, extra := range split[3:] {
			extra.Close()
		}
	default:
		return nil, fmt.Errorf("%s: unsupported channel count %d", path, src.Channels())
	}

	planes, err := toPlanes(channels, w, h, 1/maxVal)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return planes, nil
}

// toPlanes scales each w x h channel into a float plane. The channels are
// always closed.
func toPlanes(channels []gocv.Mat, w, h int, scale float64) ([]cs.Mat, error) {
	defer func() {
		for i := range channels {
			channels[i].Close()
		}
	}()

	planes := make([]cs.Mat, 0, len(channels))
	for i, ch := range channels {
		m, err := channelPlane(ch, w, h, scale)
		if err != nil {
			for j := range planes {
				planes[j].Close()
			}
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}
		planes = append(planes, m)
	}
	return planes, nil
}

func channelPlane(ch gocv.Mat, w, h int, scale float64) (cs.Mat, error) {
	if ch.Cols() != w || ch.Rows() != h {
		return cs.Mat{}, fmt.Errorf("size %dx%d, want %dx%d", ch.Cols(), ch.Rows(), w, h)
	}
	floatMat := gocv.NewMat()
	defer floatMat.Close()
	ch.ConvertToWithParams(&floatMat, gocv.MatTypeCV32F, float32(scale), 0)
	data, err := floatMat.DataPtrFloat32()
	if err != nil {
		return cs.Mat{}, err
	}
	return cs.NewMatFromData(data[:w*h], w, h)
}
