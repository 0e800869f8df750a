package contsub

import (
	"gonum.org/v1/gonum/stat"
)

// EstimateScaleRatio is the quick, non-optimising estimate: the mean of the
// narrowband over pixels where r+g+b is positive, divided by the mean of
// r+g+b over the same pixels. It returns 1 when no pixel qualifies or the
// broadband mean is zero. Unlike EstimateScale the result is not clipped.
func EstimateScaleRatio(nb, r, g, b Mat) (float64, error) {
	if err := checkShapes([]string{"narrowband", "red", "green", "blue"}, nb, r, g, b); err != nil {
		return 0, err
	}

	n := nb.Rows() * nb.Cols()
	nbd, rd, gd, bd := nb.DataFloat32(), r.DataFloat32(), g.DataFloat32(), b.DataFloat32()
	nbVals := make([]float64, 0, n)
	sumVals := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		sum := float64(rd[i]) + float64(gd[i]) + float64(bd[i])
		if sum > 0 {
			nbVals = append(nbVals, float64(nbd[i]))
			sumVals = append(sumVals, sum)
		}
	}
	if len(sumVals) == 0 {
		return 1.0, nil
	}

	broadMean := stat.Mean(sumVals, nil)
	if broadMean == 0 {
		return 1.0, nil
	}
	return stat.Mean(nbVals, nil) / broadMean, nil
}
