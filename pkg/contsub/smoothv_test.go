package contsub

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelSamples(m FitModel, lo, hi float64, n int) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		c := lo + (hi-lo)*float64(i)/float64(n-1)
		samples[i] = Sample{C: c, AAD: m.Eval(c)}
	}
	return samples
}

func TestFitSmoothVRecoversModel(t *testing.T) {
	want := FitModel{A: 2, S0: 0.4, Eps: 0.05, B: 1}
	samples := modelSamples(want, -0.5, 1.5, 40)

	got, err := FitSmoothV(samples, 3)
	require.NoError(t, err)
	assert.InDelta(t, want.S0, got.S0, 1e-4)
	assert.InDelta(t, want.A, got.A, 1e-3)
	assert.InDelta(t, want.B, got.B, 1e-3)
	assert.InDelta(t, 1.0, got.RSquared, 1e-6)
}

func TestFitSmoothVAsymmetricWindow(t *testing.T) {
	want := FitModel{A: 250, S0: 0.37, Eps: 0.01, B: 4}
	samples := modelSamples(want, -0.1, 1.9, 40)

	got, err := FitSmoothV(samples, 3)
	require.NoError(t, err)
	assert.InDelta(t, want.S0, got.S0, 1e-3)
}

func TestFitSmoothVDownwardSecant(t *testing.T) {
	want := FitModel{A: 250, S0: 0.35, Eps: 0.015, B: 4}
	c0 := 1.0 / 11
	samples := modelSamples(want, c0-1, c0+1, 40)
	first, last := samples[0], samples[len(samples)-1]
	require.Less(t, (last.AAD-first.AAD)/(last.C-first.C), -1.0)

	got, err := FitSmoothV(samples, 2*(c0+1))
	require.NoError(t, err)
	assert.InDelta(t, want.S0, got.S0, 1e-3)
	assert.InDelta(t, want.A, got.A, 1e-2)
}

func TestFitSmoothVRejectsPoorFit(t *testing.T) {
	samples := make([]Sample, 40)
	for i := range samples {
		c := float64(i) / 39
		samples[i] = Sample{C: c, AAD: 10 - 5*math.Abs(c-0.5)}
	}

	got, err := FitSmoothV(samples, 2)
	assert.ErrorIs(t, err, ErrFitDivergence)
	assert.GreaterOrEqual(t, got.A, -1.0)
}

func TestFitSmoothVRespectsBounds(t *testing.T) {
	samples := modelSamples(FitModel{A: 1, S0: 3, Eps: 0.1, B: 0.5}, 1, 5, 40)

	got, err := FitSmoothV(samples, 2)
	if err != nil {
		assert.ErrorIs(t, err, ErrFitDivergence)
	}
	assert.LessOrEqual(t, got.S0, 2.0)
	assert.GreaterOrEqual(t, got.S0, 0.0)
	assert.GreaterOrEqual(t, got.A, -1.0)
	assert.GreaterOrEqual(t, got.Eps, 0.0)
	assert.GreaterOrEqual(t, got.B, 0.0)
}

func TestFitSmoothVFlatSamples(t *testing.T) {
	samples := modelSamples(FitModel{}, -1, 1, 10)

	got, err := FitSmoothV(samples, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.A)
	assert.Equal(t, 0.0, got.S0) // first sample projected into [0, 2]
}

func TestFitSmoothVTooFewSamples(t *testing.T) {
	_, err := FitSmoothV([]Sample{{C: 0, AAD: 1}, {C: 1, AAD: 2}}, 2)
	assert.ErrorIs(t, err, ErrFitDivergence)
}

func TestSmoothVGradientAtVertex(t *testing.T) {
	grad := make([]float64, numParams)
	smoothVGradient([]float64{1, 0.5, 0, 0}, 0.5, grad)
	for _, g := range grad {
		assert.False(t, math.IsNaN(g))
	}
	assert.Equal(t, 1.0, grad[pB])
}
