package contsub

import (
	"fmt"
	"sort"
)

// NewMatFromData copies row-major float32 samples into a new Mat.
func NewMatFromData(data []float32, width, height int) (Mat, error) {
	if width <= 0 || height <= 0 {
		return Mat{}, fmt.Errorf("invalid plane size %dx%d", width, height)
	}
	if len(data) != width*height {
		return Mat{}, fmt.Errorf("plane data has %d samples, want %d (%dx%d)", len(data), width*height, width, height)
	}
	m := NewMatWithSize(height, width)
	copy(m.DataFloat32(), data)
	return m, nil
}

// ToFloat32Mat converts a uint16 pixel array to a CV_32F Mat normalized to [0, 1].
func ToFloat32Mat(pixels []uint16, bpp, width, height int) Mat {
	data := NewMatWithSize(height, width)
	dest := data.DataFloat32()
	scalingRatio := float32(uint32(1) << uint(bpp))
	numPixels := width * height
	for i := 0; i < numPixels; i++ {
		dest[i] = float32(pixels[i]) / scalingRatio
	}
	return data
}

// Median returns the median sample of a contiguous Mat, averaging the two
// middle samples for even counts.
func Median(m Mat) float64 {
	n := m.Rows() * m.Cols()
	if n == 0 {
		return 0
	}
	data := m.DataFloat32()[:n]
	values := make([]float64, n)
	for i, v := range data {
		values[i] = float64(v)
	}
	return medianF64(values)
}

// medianF64 sorts values in place.
func medianF64(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2.0
	}
	return values[n/2]
}

func sameShape(a, b Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}

func checkShapes(names []string, mats ...Mat) error {
	for i := 1; i < len(mats); i++ {
		if !sameShape(mats[0], mats[i]) {
			return fmt.Errorf("%w: %s is %dx%d, %s is %dx%d", ErrShapeMismatch,
				names[0], mats[0].Cols(), mats[0].Rows(),
				names[i], mats[i].Cols(), mats[i].Rows())
		}
	}
	return nil
}
