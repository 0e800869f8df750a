package contsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionStats(t *testing.T) {
	// 4x3, values are the pixel index
	data := make([]float32, 12)
	for i := range data {
		data[i] = float32(i)
	}
	nb := matFrom(t, data, 4, 3)
	co := matFrom(t, data, 4, 3)

	nbSub, coSub, baseline, err := RegionStats(nb, co, Region{X: 1, Y: 1, W: 2, H: 2})
	require.NoError(t, err)
	defer nbSub.Close()
	defer coSub.Close()

	assert.Equal(t, 2, coSub.Cols())
	assert.Equal(t, 2, coSub.Rows())
	assert.Equal(t, []float32{5, 6, 9, 10}, plane(coSub))
	assert.Equal(t, []float32{5, 6, 9, 10}, plane(nbSub))
	assert.Equal(t, 7.5, baseline)
}

func TestRegionStatsErrors(t *testing.T) {
	nb := constMat(t, 1, 10, 8)
	co := constMat(t, 1, 10, 8)
	other := constMat(t, 1, 8, 10)

	_, _, _, err := RegionStats(nb, other, Region{W: 2, H: 2})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	for _, r := range []Region{
		{X: 0, Y: 0, W: 0, H: 4},
		{X: 0, Y: 0, W: 4, H: 0},
		{X: -1, Y: 0, W: 4, H: 4},
		{X: 7, Y: 0, W: 4, H: 4},
		{X: 0, Y: 5, W: 4, H: 4},
	} {
		_, _, _, err := RegionStats(nb, co, r)
		assert.ErrorIs(t, err, ErrInvalidRegion, "region %s", r)
	}
}

func TestAAD(t *testing.T) {
	assert.InDelta(t, 1.0, AAD(matFrom(t, []float32{1, 2, 3, 4}, 2, 2)), 1e-9)
	assert.Equal(t, 0.0, AAD(constMat(t, 7, 5, 5)))

	// Shifting by a constant leaves the spread alone.
	assert.InDelta(t, 1.0, AAD(matFrom(t, []float32{101, 102, 103, 104}, 4, 1)), 1e-6)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median(matFrom(t, []float32{3, 1, 2}, 3, 1)))
	assert.Equal(t, 2.5, Median(matFrom(t, []float32{4, 1, 3, 2}, 2, 2)))
}
