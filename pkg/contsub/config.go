package contsub

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

/* Example config file ...

line: Ha
inputs:
  narrowband: ha.fits
  rgb: rgb.fits
region: {x: 1200, y: 800, w: 400, h: 300}
strength: 2.5
weights: {red: 1, green: 0, blue: 0.2}
outputs:
  subtracted: ha-cs.fits
  blended: blend.fits
  plot: trace.png

*/

// Scale estimation methods.
const (
	MethodFit   = "fit"
	MethodRatio = "ratio"
)

type InputPaths struct {
	Narrowband string `yaml:"narrowband"`
	Continuum  string `yaml:"continuum,omitempty"` // defaults to the line's channel of the RGB input
	RGB        string `yaml:"rgb,omitempty"`       // 3-plane cube or RGGB mosaic
	Red        string `yaml:"red,omitempty"`
	Green      string `yaml:"green,omitempty"`
	Blue       string `yaml:"blue,omitempty"`
}

type SearchConfig struct {
	CoarseMin     float64 `yaml:"coarsemin"`
	CoarseMax     float64 `yaml:"coarsemax"`
	CoarseSteps   int     `yaml:"coarsesteps"`
	FineHalfWidth float64 `yaml:"finehalfwidth"`
	FineSteps     int     `yaml:"finesteps"`
}

type OutputPaths struct {
	Subtracted string `yaml:"subtracted,omitempty"`
	Blended    string `yaml:"blended,omitempty"`
	Plot       string `yaml:"plot,omitempty"`
}

type Config struct {
	Line     Line            `yaml:"line"`
	Inputs   InputPaths      `yaml:"inputs"`
	Region   *Region         `yaml:"region,omitempty"` // nil means the whole image
	Scale    *float64        `yaml:"scale,omitempty"`  // manual coefficient, skips estimation
	Method   string          `yaml:"method"`
	Strength float64         `yaml:"strength"`
	Weights  *ChannelWeights `yaml:"weights,omitempty"` // nil means the line's defaults
	Search   SearchConfig    `yaml:"search"`
	Outputs  OutputPaths     `yaml:"outputs"`

	lineWeights bool // Weights were filled in from Line by Finalize
}

func NewConfig() Config {
	return Config{
		Line:     LineHa,
		Method:   MethodFit,
		Strength: 2.0,
		Search: SearchConfig{
			CoarseMin:     defaultCoarseMin,
			CoarseMax:     defaultCoarseMax,
			CoarseSteps:   defaultCoarseSteps,
			FineHalfWidth: defaultFineHalfWidth,
			FineSteps:     defaultFineSteps,
		},
	}
}

func LoadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return NewConfig(), fmt.Errorf("config read %s: %w", filename, err)
	}
	c, err := ParseConfig(contents)
	if err != nil {
		return c, fmt.Errorf("config %s: %w", filename, err)
	}
	return c, nil
}

// ParseConfig overlays the YAML document on the defaults and finalizes it.
func ParseConfig(contents []byte) (Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("parse: %w", err)
	}
	return c, c.Finalize()
}

// Finalize does sanity checks and fills in derived defaults.
func (c *Config) Finalize() error {
	switch c.Method {
	case "":
		c.Method = MethodFit
	case MethodFit, MethodRatio:
	default:
		return fmt.Errorf("no estimation method named '%s'", c.Method)
	}

	if c.Strength < 0 {
		return fmt.Errorf("strength %f is negative", c.Strength)
	}
	if c.Scale != nil && (*c.Scale < 0 || *c.Scale > 1) {
		return fmt.Errorf("scale %f outside [0, 1]", *c.Scale)
	}
	if c.Region != nil && (c.Region.W <= 0 || c.Region.H <= 0) {
		return fmt.Errorf("%w: %s has zero area", ErrInvalidRegion, c.Region)
	}
	if c.Weights == nil || c.lineWeights {
		w := c.Line.DefaultWeights()
		c.Weights = &w
		c.lineWeights = true
	}

	return newOptions(c.SearchOptions()).validate()
}

// SetWeights replaces the channel weights; later Finalize calls keep them
// even if Line changes.
func (c *Config) SetWeights(w ChannelWeights) {
	c.Weights = &w
	c.lineWeights = false
}

// RegionOr returns the configured region, or full when none is set.
func (c Config) RegionOr(full Region) Region {
	if c.Region == nil {
		return full
	}
	return *c.Region
}

// SearchOptions turns the search section into estimator options.
func (c Config) SearchOptions() []Option {
	s := c.Search
	return []Option{
		WithCoarseGrid(s.CoarseMin, s.CoarseMax, s.CoarseSteps),
		WithFineGrid(s.FineHalfWidth, s.FineSteps),
	}
}

// AsYaml leaves out weights derived from the line so that a reload tracks
// later line changes the same way.
func (c Config) AsYaml() string {
	if c.lineWeights {
		c.Weights = nil
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("# can't marshal config yaml: %v\n", err)
	}
	return string(b)
}
