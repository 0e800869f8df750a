//go:build purego || js

package contsub

import (
	"image"
	"math"
)

// Mat is a pure Go 2D float32 matrix.
type Mat struct {
	data    []float32
	rows    int
	cols    int
	stride  int // elements per row in backing array (may differ from cols for sub-matrices)
	dataOff int // offset into data for sub-matrices
	owned   bool
}

func NewMat() Mat { return Mat{} }

func NewMatWithSize(rows, cols int) Mat {
	return Mat{
		data:   make([]float32, rows*cols),
		rows:   rows,
		cols:   cols,
		stride: cols,
		owned:  true,
	}
}

func (m Mat) Rows() int   { return m.rows }
func (m Mat) Cols() int   { return m.cols }
func (m Mat) Empty() bool { return m.data == nil || m.rows == 0 || m.cols == 0 }

func (m Mat) Clone() Mat {
	newData := make([]float32, m.rows*m.cols)
	for r := 0; r < m.rows; r++ {
		srcOff := m.dataOff + r*m.stride
		copy(newData[r*m.cols:], m.data[srcOff:srcOff+m.cols])
	}
	return Mat{data: newData, rows: m.rows, cols: m.cols, stride: m.cols, owned: true}
}

func (m *Mat) Close() {
	if m.owned {
		m.data = nil
	}
	m.rows = 0
	m.cols = 0
}

// DataFloat32 returns the backing float32 slice.
// Only valid for contiguous mats (not un-cloned sub-matrices from Region).
func (m Mat) DataFloat32() []float32 {
	if m.data == nil {
		return nil
	}
	return m.data[m.dataOff:]
}

func (m Mat) Region(r image.Rectangle) Mat {
	return Mat{
		data:    m.data,
		rows:    r.Dy(),
		cols:    r.Dx(),
		stride:  m.stride,
		dataOff: m.dataOff + r.Min.Y*m.stride + r.Min.X,
		owned:   false,
	}
}

// --- Pure Go CV operations ---

func ensureSize(dst *Mat, rows, cols int) {
	if dst.rows != rows || dst.cols != cols || dst.data == nil {
		*dst = NewMatWithSize(rows, cols)
	}
}

// addWeighted computes dst = alpha*a + beta*b + gamma.
func addWeighted(a Mat, alpha float64, b Mat, beta, gamma float64, dst *Mat) {
	rows, cols := a.rows, a.cols
	ad, bd := a.DataFloat32(), b.DataFloat32()
	ensureSize(dst, rows, cols)
	dd := dst.DataFloat32()
	n := rows * cols
	for i := 0; i < n; i++ {
		dd[i] = float32(alpha*float64(ad[i]) + beta*float64(bd[i]) + gamma)
	}
}

// scaleOffset computes dst = alpha*src + beta.
func scaleOffset(src Mat, alpha, beta float64, dst *Mat) {
	rows, cols := src.rows, src.cols
	sd := src.DataFloat32()
	ensureSize(dst, rows, cols)
	dd := dst.DataFloat32()
	n := rows * cols
	for i := 0; i < n; i++ {
		dd[i] = float32(alpha*float64(sd[i]) + beta)
	}
}

func matMean(src Mat) float64 {
	n := src.rows * src.cols
	if n == 0 {
		return 0
	}
	data := src.DataFloat32()
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(data[i])
	}
	return sum / float64(n)
}

// meanAbsDeviation returns mean(|src - center|).
func meanAbsDeviation(src Mat, center float64) float64 {
	n := src.rows * src.cols
	if n == 0 {
		return 0
	}
	data := src.DataFloat32()
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(float64(data[i]) - center)
	}
	return sum / float64(n)
}
