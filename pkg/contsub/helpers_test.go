package contsub

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func matFrom(t *testing.T, data []float32, width, height int) Mat {
	t.Helper()
	m, err := NewMatFromData(data, width, height)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func constMat(t *testing.T, v float32, width, height int) Mat {
	t.Helper()
	data := make([]float32, width*height)
	for i := range data {
		data[i] = v
	}
	return matFrom(t, data, width, height)
}

func plane(m Mat) []float32 {
	return m.DataFloat32()[:m.Rows()*m.Cols()]
}

// syntheticPair builds a continuum with a wide spread of levels and a
// narrowband carrying independent line emission plus cTrue of the continuum.
func syntheticPair(t *testing.T, cTrue float64, width, height int) (nb, co Mat) {
	t.Helper()
	return syntheticPairSeeded(t, cTrue, width, height, 1)
}

func syntheticPairSeeded(t *testing.T, cTrue float64, width, height int, seed int64) (nb, co Mat) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	n := width * height
	coData := make([]float32, n)
	nbData := make([]float32, n)
	for i := 0; i < n; i++ {
		c := 100 + 1000*rng.Float64()
		line := 50 + 5*rng.NormFloat64()
		coData[i] = float32(c)
		nbData[i] = float32(line + cTrue*c)
	}
	return matFrom(t, nbData, width, height), matFrom(t, coData, width, height)
}
