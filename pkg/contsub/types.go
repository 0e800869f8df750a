package contsub

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Region is an axis-aligned rectangle in pixel coordinates.
type Region struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// FullRegion covers the whole of m.
func FullRegion(m Mat) Region {
	return Region{X: 0, Y: 0, W: m.Cols(), H: m.Rows()}
}

func (r Region) Rect() image.Rectangle { return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H) }

func (r Region) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.W, r.H, r.X, r.Y)
}

// ParseRegion parses the "WxH+X+Y" geometry form used on the command line.
func ParseRegion(s string) (Region, error) {
	var r Region
	if _, err := fmt.Sscanf(s, "%dx%d+%d+%d", &r.W, &r.H, &r.X, &r.Y); err != nil {
		return Region{}, fmt.Errorf("%w: parse %q: want WxH+X+Y", ErrInvalidRegion, s)
	}
	return r, nil
}

// Validate checks r against a plane of the given size.
func (r Region) Validate(width, height int) error {
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("%w: %s has zero area", ErrInvalidRegion, r)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > width || r.Y+r.H > height {
		return fmt.Errorf("%w: %s outside %dx%d image", ErrInvalidRegion, r, width, height)
	}
	return nil
}

// Sample is one evaluation of the objective at a candidate coefficient.
type Sample struct {
	C   float64
	AAD float64
}

// Trace holds the samples produced by both search phases, in order.
type Trace struct {
	Coarse []Sample
	Fine   []Sample
}

// All returns the coarse samples followed by the fine ones.
func (t Trace) All() []Sample {
	all := make([]Sample, 0, len(t.Coarse)+len(t.Fine))
	all = append(all, t.Coarse...)
	return append(all, t.Fine...)
}

// FitModel holds the parameters of A*sqrt((x-S0)^2+Eps^2)+B.
type FitModel struct {
	A        float64
	S0       float64
	Eps      float64
	B        float64
	RSquared float64
}

func (f FitModel) Eval(x float64) float64 {
	d := x - f.S0
	return f.A*math.Sqrt(d*d+f.Eps*f.Eps) + f.B
}

func (f FitModel) String() string {
	return fmt.Sprintf("{A=%f, S0=%f, Eps=%f, B=%f, RSquared=%f}", f.A, f.S0, f.Eps, f.B, f.RSquared)
}

// Estimate is the result of EstimateScale.
type Estimate struct {
	Scale    float64 // in [0, 1]
	Coarse0  float64 // coarse-grid minimum the fine window is centred on
	Baseline float64 // continuum median over the region
	Region   Region
	Model    FitModel
	Fitted   bool  // false when the fit failed and Scale is the best fine sample
	FitErr   error // wraps ErrFitDivergence when Fitted is false
	Trace    Trace
}

func (e *Estimate) String() string {
	return fmt.Sprintf("{Scale=%.4f, Coarse0=%.4f, Baseline=%f, Region=%s, Fitted=%t, Model=%s}",
		e.Scale, e.Coarse0, e.Baseline, e.Region, e.Fitted, e.Model)
}

// ChannelWeights scale the subtracted signal added into each output channel.
type ChannelWeights struct {
	Red   float64 `yaml:"red"`
	Green float64 `yaml:"green"`
	Blue  float64 `yaml:"blue"`
}

// Channel names a broadband colour channel.
type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
)

func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "Red"
	case ChannelGreen:
		return "Green"
	case ChannelBlue:
		return "Blue"
	default:
		return "Unknown"
	}
}

// Line is the emission line carried by the narrowband image.
type Line int

const (
	LineHa Line = iota
	LineSII
	LineOIII
)

func (l Line) String() string {
	switch l {
	case LineHa:
		return "Ha"
	case LineSII:
		return "SII"
	case LineOIII:
		return "OIII"
	default:
		return "Unknown"
	}
}

// ContinuumChannel is the broadband channel whose passband contains the line.
func (l Line) ContinuumChannel() Channel {
	switch l {
	case LineOIII:
		return ChannelGreen
	default:
		return ChannelRed
	}
}

// DefaultWeights is where the line's signal lands in an RGB composite.
func (l Line) DefaultWeights() ChannelWeights {
	switch l {
	case LineOIII:
		return ChannelWeights{Red: 0, Green: 1, Blue: 1}
	default:
		return ChannelWeights{Red: 1, Green: 0, Blue: 0}
	}
}

// ParseLine accepts the common spellings of each line, case-insensitively.
func ParseLine(s string) (Line, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ha", "h-alpha", "halpha", "h_alpha":
		return LineHa, nil
	case "sii", "s2", "s-ii":
		return LineSII, nil
	case "oiii", "o3", "o-iii":
		return LineOIII, nil
	}
	return 0, fmt.Errorf("unknown emission line %q", s)
}

func (l Line) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}

func (l *Line) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseLine(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ProgressFunc receives progress notifications from the search loops.
// It runs on the estimating goroutine; fraction is in [0, 1].
type ProgressFunc func(message string, fraction float64)
