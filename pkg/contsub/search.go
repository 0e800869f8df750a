package contsub

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

const (
	defaultCoarseMin     = -1.0
	defaultCoarseMax     = 5.0
	defaultCoarseSteps   = 12
	defaultFineHalfWidth = 1.0
	defaultFineSteps     = 40
)

// progressMeter turns per-sample ticks into monotonic fractions.
type progressMeter struct {
	fn    ProgressFunc
	done  int
	total int
}

func (p *progressMeter) tick(message string) {
	p.done++
	if p.fn == nil || p.total <= 0 {
		return
	}
	frac := float64(p.done) / float64(p.total)
	if frac > 1 {
		frac = 1
	}
	p.fn(message, frac)
}

func (p *progressMeter) finish(message string) {
	if p.fn != nil {
		p.fn(message, 1.0)
	}
}

// CoarseSearch samples the objective over the wide coarse interval and
// returns the best coefficient with the samples taken.
func CoarseSearch(ctx context.Context, nb, co Mat, baseline float64, opts ...Option) (float64, []Sample, error) {
	o := newOptions(opts)
	if err := o.validate(); err != nil {
		return 0, nil, err
	}
	if err := checkShapes([]string{"narrowband", "continuum"}, nb, co); err != nil {
		return 0, nil, err
	}
	meter := &progressMeter{fn: o.progress, total: o.coarseSteps}
	return coarseSearch(ctx, nb, co, baseline, o, meter)
}

func coarseSearch(ctx context.Context, nb, co Mat, baseline float64, o *options, meter *progressMeter) (float64, []Sample, error) {
	grid := floats.Span(make([]float64, o.coarseSteps), o.coarseMin, o.coarseMax)
	samples, err := sampleGrid(ctx, nb, co, baseline, grid, "coarse", meter)
	if err != nil {
		return 0, nil, err
	}
	best := bestSample(samples)
	o.log.WithField("c0", best.C).WithField("aad", best.AAD).Debug("coarse search done")
	return best.C, samples, nil
}

// fineSearch samples the window [c0-halfWidth, c0+halfWidth].
func fineSearch(ctx context.Context, nb, co Mat, baseline, c0 float64, o *options, meter *progressMeter) ([]Sample, error) {
	grid := floats.Span(make([]float64, o.fineSteps), c0-o.fineHalfWidth, c0+o.fineHalfWidth)
	return sampleGrid(ctx, nb, co, baseline, grid, "fine", meter)
}

func sampleGrid(ctx context.Context, nb, co Mat, baseline float64, grid []float64, phase string, meter *progressMeter) ([]Sample, error) {
	diff := NewMat()
	defer diff.Close()

	samples := make([]Sample, 0, len(grid))
	for i, c := range grid {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s search at sample %d/%d: %w", ErrCancelled, phase, i+1, len(grid), err)
		}
		samples = append(samples, Sample{C: c, AAD: subtractedAAD(nb, co, baseline, c, &diff)})
		meter.tick(fmt.Sprintf("%s search %d/%d", phase, i+1, len(grid)))
	}
	return samples, nil
}

// bestSample returns the lowest-AAD sample, the first one on ties.
func bestSample(samples []Sample) Sample {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.AAD
	}
	return samples[floats.MinIdx(values)]
}
