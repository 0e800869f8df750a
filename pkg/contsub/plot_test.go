package contsub

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTrace(t *testing.T) {
	nb, co := syntheticPair(t, 0.5, 30, 30)
	est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb))
	require.NoError(t, err)

	b, err := RenderTraceBytes(est)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, plotWidth, cfg.Width)
	assert.Equal(t, plotHeight, cfg.Height)

	path := filepath.Join(t.TempDir(), "trace.png")
	require.NoError(t, RenderTrace(est, path))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, format, err = image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestRenderTraceRejectedFit(t *testing.T) {
	nb, co := syntheticPair(t, 0.5, 30, 30)
	est, err := EstimateScale(context.Background(), nb, co, FullRegion(nb), WithFitIterations(0))
	require.NoError(t, err)
	require.False(t, est.Fitted)

	b, err := RenderTraceBytes(est)
	require.NoError(t, err)
	assert.NotEmpty(t, b)
}

func TestRenderTraceNoData(t *testing.T) {
	_, err := RenderTraceBytes(nil)
	assert.Error(t, err)
	_, err = RenderTraceBytes(&Estimate{})
	assert.Error(t, err)
}
