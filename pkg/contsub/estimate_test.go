package contsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateScaleRecoversCoefficient(t *testing.T) {
	for _, cTrue := range []float64{0.25, 0.6} {
		nb, co := syntheticPair(t, cTrue, 100, 100)

		est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb))
		require.NoError(t, err)
		assert.True(t, est.Fitted, "fit error: %v", est.FitErr)
		assert.False(t, est.IsFitDivergence())
		assert.InDelta(t, cTrue, est.Scale, 0.02)
		assert.Len(t, est.Trace.Coarse, 12)
		assert.Len(t, est.Trace.Fine, 40)
	}
}

func TestEstimateScaleSweep(t *testing.T) {
	for k := 0; k <= 100; k++ {
		cTrue := float64(k) / 100
		nb, co := syntheticPair(t, cTrue, 64, 64)

		est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb))
		require.NoError(t, err)
		assert.True(t, est.Fitted, "c=%.2f fit error: %v", cTrue, est.FitErr)
		assert.InDelta(t, cTrue, est.Scale, 0.02, "c=%.2f", cTrue)
	}
}

// A coarse minimum well below the true coefficient leaves the fine window
// lopsided, so the secant between its ends slopes downwards.
func TestEstimateScaleLopsidedWindow(t *testing.T) {
	for _, cTrue := range []float64{0.35, 0.36} {
		nb, co := syntheticPairSeeded(t, cTrue, 64, 64, 46)

		est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb))
		require.NoError(t, err)
		assert.InDelta(t, 1.0/11, est.Coarse0, 1e-9)
		fine := est.Trace.Fine
		require.Greater(t, fine[0].AAD, fine[len(fine)-1].AAD)

		assert.True(t, est.Fitted, "fit error: %v", est.FitErr)
		assert.Greater(t, est.Model.A, 0.0)
		assert.Greater(t, est.Model.RSquared, 0.9)
		assert.InDelta(t, cTrue, est.Scale, 0.02)
	}
}

func TestEstimateScaleFallsBackToBestSample(t *testing.T) {
	nb, co := syntheticPair(t, 0.3, 40, 40)

	est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb), WithFitIterations(0))
	require.NoError(t, err)
	assert.False(t, est.Fitted)
	assert.True(t, est.IsFitDivergence())
	assert.ErrorIs(t, est.FitErr, ErrFitDivergence)

	best := bestSample(est.Trace.Fine)
	assert.Equal(t, clip01(best.C), est.Scale)
	assert.InDelta(t, 0.3, est.Scale, 2.0/39)

	// the last iterate is kept for display
	assert.Greater(t, est.Model.A, 0.0)
	assert.InDelta(t, best.C, est.Model.S0, 1e-12)
}

func TestEstimateScaleSubRegion(t *testing.T) {
	nb, co := syntheticPair(t, 0.4, 120, 80)

	est, err := EstimateScale(context.Background(), nb, co, Region{X: 20, Y: 10, W: 60, H: 50})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, est.Scale, 0.02)
	assert.Equal(t, Region{X: 20, Y: 10, W: 60, H: 50}, est.Region)
}

func TestEstimateScaleClipsToOne(t *testing.T) {
	_, co := syntheticPair(t, 0, 60, 60)
	nbData := make([]float32, 60*60)
	for i, v := range plane(co) {
		nbData[i] = 1.5 * v
	}
	nb := matFrom(t, nbData, 60, 60)

	est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb))
	require.NoError(t, err)
	assert.Equal(t, 1.0, est.Scale)
	assert.Greater(t, est.Coarse0, 1.0)
}

func TestEstimateScaleConstantImages(t *testing.T) {
	nb := constMat(t, 10, 50, 50)
	co := constMat(t, 25, 50, 50)

	est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, est.Scale, 0.0)
	assert.LessOrEqual(t, est.Scale, 1.0)
	assert.Equal(t, 25.0, est.Baseline)
}

func TestEstimateScaleProgress(t *testing.T) {
	nb, co := syntheticPair(t, 0.3, 40, 40)

	var fractions []float64
	var messages []string
	_, err := EstimateScale(context.Background(), nb, co, FullRegion(nb),
		WithProgress(func(msg string, f float64) {
			messages = append(messages, msg)
			fractions = append(fractions, f)
		}))
	require.NoError(t, err)

	require.Len(t, fractions, 12+40+1)
	assert.InDelta(t, 1.0/52, fractions[0], 1e-12)
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	assert.Equal(t, "done", messages[len(messages)-1])
}

func TestEstimateScaleCancelled(t *testing.T) {
	nb, co := syntheticPair(t, 0.3, 40, 40)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := EstimateScale(ctx, nb, co, FullRegion(nb))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrFitDivergence))
}

func TestEstimateScaleCancelledDuringFineSearch(t *testing.T) {
	nb, co := syntheticPair(t, 0.3, 40, 40)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	_, err := EstimateScale(ctx, nb, co, FullRegion(nb), WithProgress(func(string, float64) {
		calls++
		if calls == 20 {
			cancel()
		}
	}))
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 20, calls)
}

func TestEstimateScaleInputErrors(t *testing.T) {
	nb := constMat(t, 1, 10, 10)
	co := constMat(t, 1, 12, 10)

	_, err := EstimateScale(context.Background(), nb, co, Region{W: 5, H: 5})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = EstimateScale(context.Background(), nb, nb, Region{X: 8, Y: 0, W: 5, H: 5})
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = EstimateScale(context.Background(), nb, nb, FullRegion(nb), WithFineGrid(1, 2))
	assert.Error(t, err)

	_, err = EstimateScale(context.Background(), nb, nb, FullRegion(nb), WithFitIterations(-1))
	assert.Error(t, err)
}

func TestCoarseSearch(t *testing.T) {
	nb, co := syntheticPair(t, 2.0, 40, 40)

	c0, samples, err := CoarseSearch(context.Background(), nb, co, Median(co))
	require.NoError(t, err)
	require.Len(t, samples, 12)
	assert.Equal(t, -1.0, samples[0].C)
	assert.InDelta(t, 5.0, samples[11].C, 1e-12)
	assert.InDelta(t, 2.0, c0, 6.0/11/2+1e-9)
}

func TestBestSampleFirstOnTies(t *testing.T) {
	s := bestSample([]Sample{{C: 0, AAD: 2}, {C: 1, AAD: 1}, {C: 2, AAD: 1}})
	assert.Equal(t, 1.0, s.C)
}
