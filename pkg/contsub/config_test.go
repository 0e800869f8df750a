package contsub

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleConfig = `
line: OIII
inputs:
  narrowband: oiii.fits
  rgb: rgb.fits
region: {x: 12, y: 8, w: 40, h: 30}
strength: 1.5
search:
  finesteps: 20
outputs:
  blended: out.fits
`

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(exampleConfig))
	require.NoError(t, err)

	assert.Equal(t, LineOIII, c.Line)
	assert.Equal(t, "oiii.fits", c.Inputs.Narrowband)
	assert.Equal(t, &Region{X: 12, Y: 8, W: 40, H: 30}, c.Region)
	assert.Equal(t, 1.5, c.Strength)
	assert.Equal(t, MethodFit, c.Method)
	assert.Nil(t, c.Scale)
	require.NotNil(t, c.Weights)
	assert.Equal(t, LineOIII.DefaultWeights(), *c.Weights)

	// untouched search fields keep their defaults
	assert.Equal(t, 20, c.Search.FineSteps)
	assert.Equal(t, defaultCoarseSteps, c.Search.CoarseSteps)
	assert.Equal(t, defaultCoarseMax, c.Search.CoarseMax)
}

func TestParseConfigRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"method":   "method: guess\n",
		"strength": "strength: -1\n",
		"scale":    "scale: 1.5\n",
		"line":     "line: hbeta\n",
		"region":   "region: {x: 1, y: 1, w: 0, h: 5}\n",
		"empty":    "region: {x: 0, y: 0, w: 0, h: 0}\n",
		"search":   "search: {coarsesteps: 1}\n",
	} {
		_, err := ParseConfig([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestConfigRegion(t *testing.T) {
	full := Region{W: 64, H: 48}

	c := NewConfig()
	require.NoError(t, c.Finalize())
	assert.Equal(t, full, c.RegionOr(full))

	r, err := ParseRegion("0x0+0+0")
	require.NoError(t, err)
	c.Region = &r
	assert.ErrorIs(t, c.Finalize(), ErrInvalidRegion)

	c.Region = &Region{X: 4, Y: 2, W: 10, H: 8}
	require.NoError(t, c.Finalize())
	assert.Equal(t, Region{X: 4, Y: 2, W: 10, H: 8}, c.RegionOr(full))
}

func TestConfigLineChangeRederivesWeights(t *testing.T) {
	c, err := ParseConfig([]byte(exampleConfig))
	require.NoError(t, err)
	require.Equal(t, LineOIII.DefaultWeights(), *c.Weights)

	c.Line = LineHa
	require.NoError(t, c.Finalize())
	assert.Equal(t, LineHa.DefaultWeights(), *c.Weights)

	c.SetWeights(ChannelWeights{Red: 1, Blue: 0.2})
	c.Line = LineOIII
	require.NoError(t, c.Finalize())
	assert.Equal(t, ChannelWeights{Red: 1, Blue: 0.2}, *c.Weights)
}

func TestConfigAsYamlReloads(t *testing.T) {
	c, err := ParseConfig([]byte(exampleConfig))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "contsub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(c.AsYaml()), 0644))

	back, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c, back)

	c.SetWeights(ChannelWeights{Red: 0.5, Green: 0.5})
	require.NoError(t, os.WriteFile(path, []byte(c.AsYaml()), 0644))
	back, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
