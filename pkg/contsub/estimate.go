package contsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

type options struct {
	coarseMin     float64
	coarseMax     float64
	coarseSteps   int
	fineHalfWidth float64
	fineSteps     int
	fitIter       int
	progress      ProgressFunc
	log           logrus.FieldLogger
}

// Option configures EstimateScale and CoarseSearch.
type Option func(*options)

// WithProgress installs a progress sink called after every grid sample.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithLogger routes debug output of the estimator to log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithCoarseGrid overrides the coarse interval and its sample count.
func WithCoarseGrid(min, max float64, steps int) Option {
	return func(o *options) {
		o.coarseMin, o.coarseMax, o.coarseSteps = min, max, steps
	}
}

// WithFineGrid overrides the half width of the fine window and its sample count.
func WithFineGrid(halfWidth float64, steps int) Option {
	return func(o *options) {
		o.fineHalfWidth, o.fineSteps = halfWidth, steps
	}
}

// WithFitIterations caps the smooth-V solver iterations. Zero skips the fit
// and keeps the best fine sample.
func WithFitIterations(n int) Option {
	return func(o *options) { o.fitIter = n }
}

func newOptions(opts []Option) *options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	o := &options{
		coarseMin:     defaultCoarseMin,
		coarseMax:     defaultCoarseMax,
		coarseSteps:   defaultCoarseSteps,
		fineHalfWidth: defaultFineHalfWidth,
		fineSteps:     defaultFineSteps,
		fitIter:       smoothVMaxIter,
		log:           discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) validate() error {
	if o.coarseSteps < 2 || !(o.coarseMax > o.coarseMin) {
		return fmt.Errorf("coarse grid needs max > min and at least 2 steps, got [%f, %f] x %d",
			o.coarseMin, o.coarseMax, o.coarseSteps)
	}
	if o.fineSteps < numParams || !(o.fineHalfWidth > 0) {
		return fmt.Errorf("fine grid needs a positive half width and at least %d steps, got %f x %d",
			numParams, o.fineHalfWidth, o.fineSteps)
	}
	if o.fitIter < 0 {
		return fmt.Errorf("fit iterations %d is negative", o.fitIter)
	}
	return nil
}

// EstimateScale finds the coefficient c in [0, 1] for which
// nb - c*(co - baseline) has the least spread over region r, where baseline
// is the continuum median over r.
//
// A coarse pass over a wide interval brackets the minimum, a fine pass
// samples a window around it, and a smooth-V model fitted to the fine
// samples places the vertex. If that fit fails the best fine sample is used
// instead and Estimate.FitErr records why. Errors are only returned for bad
// input (ErrShapeMismatch, ErrInvalidRegion) or cancellation (ErrCancelled).
func EstimateScale(ctx context.Context, nb, co Mat, r Region, opts ...Option) (*Estimate, error) {
	o := newOptions(opts)
	if err := o.validate(); err != nil {
		return nil, err
	}

	nbSub, coSub, baseline, err := RegionStats(nb, co, r)
	if err != nil {
		return nil, err
	}
	defer nbSub.Close()
	defer coSub.Close()

	log := o.log.WithField("region", r.String())
	log.WithField("baseline", baseline).Debug("region stats")

	meter := &progressMeter{fn: o.progress, total: o.coarseSteps + o.fineSteps}

	c0, coarse, err := coarseSearch(ctx, nbSub, coSub, baseline, o, meter)
	if err != nil {
		return nil, err
	}

	fine, err := fineSearch(ctx, nbSub, coSub, baseline, c0, o, meter)
	if err != nil {
		return nil, err
	}

	est := &Estimate{
		Coarse0:  c0,
		Baseline: baseline,
		Region:   r,
		Trace:    Trace{Coarse: coarse, Fine: fine},
	}

	model, err := fitSmoothVWithin(fine, 2*(c0+1), o.fitIter)
	if err != nil {
		best := bestSample(fine)
		est.Model = model
		est.Scale = clip01(best.C)
		est.FitErr = err
		log.WithError(err).WithField("c", best.C).Warn("smooth-V fit failed, using best fine sample")
	} else {
		est.Model = model
		est.Fitted = true
		est.Scale = clip01(model.S0)
		log.WithField("model", model.String()).Debug("smooth-V fit")
	}

	meter.finish("done")
	return est, nil
}

// IsFitDivergence reports whether the estimate fell back to a grid sample.
func (e *Estimate) IsFitDivergence() bool {
	return e.FitErr != nil && errors.Is(e.FitErr, ErrFitDivergence)
}

func clip01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
