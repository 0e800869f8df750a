//go:build !purego && !js

package contsub

import (
	"image"

	"gocv.io/x/gocv"
)

// Mat wraps a single-channel CV_32F gocv.Mat for the native OpenCV backend.
type Mat struct {
	m gocv.Mat
}

func NewMat() Mat                            { return Mat{m: gocv.NewMat()} }
func NewMatWithSize(rows, cols int) Mat      { return Mat{m: gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)} }
func (mat Mat) Rows() int                    { return mat.m.Rows() }
func (mat Mat) Cols() int                    { return mat.m.Cols() }
func (mat Mat) Empty() bool                  { return mat.m.Empty() }
func (mat Mat) Clone() Mat                   { return Mat{m: mat.m.Clone()} }
func (mat *Mat) Close()                      { mat.m.Close() }
func (mat Mat) Region(r image.Rectangle) Mat { return Mat{m: mat.m.Region(r)} }

// DataFloat32 returns the backing float32 slice.
// Only valid for continuous mats; clone Region views before calling it.
func (mat Mat) DataFloat32() []float32 {
	data, _ := mat.m.DataPtrFloat32()
	return data
}

// --- CV operations ---

// addWeighted computes dst = alpha*a + beta*b + gamma.
func addWeighted(a Mat, alpha float64, b Mat, beta, gamma float64, dst *Mat) {
	gocv.AddWeighted(a.m, alpha, b.m, beta, gamma, &dst.m)
}

// scaleOffset computes dst = alpha*src + beta.
func scaleOffset(src Mat, alpha, beta float64, dst *Mat) {
	src.m.ConvertToWithParams(&dst.m, gocv.MatTypeCV32F, float32(alpha), float32(beta))
}

func matMean(src Mat) float64 {
	if src.Empty() {
		return 0
	}
	return src.m.Mean().Val1
}

// meanAbsDeviation returns mean(|src - center|).
func meanAbsDeviation(src Mat, center float64) float64 {
	if src.Empty() {
		return 0
	}
	c := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(center, 0, 0, 0), src.Rows(), src.Cols(), gocv.MatTypeCV32F)
	defer c.Close()
	dev := gocv.NewMat()
	defer dev.Close()
	gocv.AbsDiff(src.m, c, &dev)
	return dev.Mean().Val1
}
