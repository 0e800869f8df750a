package contsub

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Parameter order used by the solver.
const (
	pA = iota
	pS0
	pEps
	pB
	numParams
)

const (
	smoothVEps0        = 0.01
	smoothVMaxIter     = 200
	smoothVFTol        = 1e-8
	smoothVGTol        = 1e-8
	smoothVXTol        = 1e-8
	smoothVMaxLamda    = 1e16
	smoothVMinRSquared = 0.9
)

// FitSmoothV fits A*sqrt((x-s0)^2+eps^2)+B to the samples with bounds
// A >= -1, 0 <= s0 <= s0Max, eps >= 0, B >= 0. The initial guess is
// B = min(AAD), s0 = C at that minimum, A = secant slope between the first
// and last samples, eps = 0.01. When that guess lies outside the bounds or
// its fit is rejected, the fit is repeated once from the steeper arm slope
// with the guess projected into the bounds.
//
// A fit is rejected when its vertex leaves the sampled interval or its R^2
// is below 0.9, unless the samples are matched exactly.
//
// A non-nil error wrapping ErrFitDivergence is returned when no fit is
// accepted; the returned model then holds the last iterate.
func FitSmoothV(samples []Sample, s0Max float64) (FitModel, error) {
	return fitSmoothVWithin(samples, s0Max, smoothVMaxIter)
}

func fitSmoothVWithin(samples []Sample, s0Max float64, maxIter int) (FitModel, error) {
	if len(samples) < numParams {
		return FitModel{}, fmt.Errorf("%w: need at least %d samples, got %d", ErrFitDivergence, numParams, len(samples))
	}
	lower := []float64{-1, 0, 0, 0}
	upper := []float64{math.Inf(1), s0Max, math.Inf(1), math.Inf(1)}
	if s0Max < 0 {
		upper[pS0] = 0
	}

	model, err := fitSmoothV(samples, smoothVGuess(samples), lower, upper, maxIter)
	if err == nil {
		return model, nil
	}
	retry, retryErr := fitSmoothV(samples, smoothVArmGuess(samples, lower, upper), lower, upper, maxIter)
	if retryErr == nil {
		return retry, nil
	}
	return retry, fmt.Errorf("%w; from arm slope: %v", err, retryErr)
}

func smoothVGuess(samples []Sample) []float64 {
	best := bestSample(samples)
	first, last := samples[0], samples[len(samples)-1]
	a0 := 0.0
	if last.C != first.C {
		a0 = (last.AAD - first.AAD) / (last.C - first.C)
	}
	return []float64{a0, best.C, smoothVEps0, best.AAD}
}

// smoothVArmGuess replaces the secant with the steeper of the slopes from
// the best sample to either end of the window.
func smoothVArmGuess(samples []Sample, lower, upper []float64) []float64 {
	x := smoothVGuess(samples)
	best := bestSample(samples)
	slope := 0.0
	for _, s := range []Sample{samples[0], samples[len(samples)-1]} {
		if s.C != best.C {
			slope = math.Max(slope, math.Abs(s.AAD-best.AAD)/math.Abs(s.C-best.C))
		}
	}
	x[pA] = slope
	for j := range x {
		x[j] = clampParam(x[j], lower[j], upper[j])
	}
	return x
}

func smoothVValue(p []float64, x float64) float64 {
	d := x - p[pS0]
	return p[pA]*math.Sqrt(d*d+p[pEps]*p[pEps]) + p[pB]
}

func smoothVGradient(p []float64, x float64, grad []float64) {
	d := x - p[pS0]
	r := math.Sqrt(d*d + p[pEps]*p[pEps])
	grad[pA] = r
	grad[pB] = 1
	if r == 0 {
		grad[pS0] = 0
		grad[pEps] = 0
		return
	}
	grad[pS0] = -p[pA] * d / r
	grad[pEps] = p[pA] * p[pEps] / r
}

func fitSmoothV(samples []Sample, x0, lower, upper []float64, maxIter int) (FitModel, error) {
	n := numParams
	m := len(samples)

	x := make([]float64, n)
	copy(x, x0)
	guess := FitModel{A: x[pA], S0: x[pS0], Eps: x[pEps], B: x[pB]}
	for j := 0; j < n; j++ {
		if !(x[j] >= lower[j] && x[j] <= upper[j]) {
			return guess, fmt.Errorf("%w: initial guess %s outside bounds", ErrFitDivergence, guess)
		}
	}

	ySumSq := 0.0
	for _, s := range samples {
		ySumSq += s.AAD * s.AAD
	}
	costFloor := 1e-24 * ySumSq

	fi := make([]float64, m)
	jac := mat.NewDense(m, n, nil)
	grad := make([]float64, n)
	computeSmoothVResiduals(samples, x, fi, jac, grad)
	cost := sumOfSquares(fi)

	lambda := 1e-3
	nu := 2.0

	var jtj mat.SymDense
	var jtf mat.VecDense
	fVec := mat.NewVecDense(m, fi)
	a := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	var dx mat.VecDense
	xNew := make([]float64, n)
	fiNew := make([]float64, m)

	converged := false
	for iter := 0; iter < maxIter && !converged; iter++ {
		if cost <= costFloor {
			converged = true
			break
		}

		jtj.SymOuterK(1, jac.T())
		jtf.MulVec(jac.T(), fVec)

		if projectedGradientNorm(&jtf, x, lower, upper) <= smoothVGTol*(cost+costFloor) {
			converged = true
			break
		}

		maxDiag := 0.0
		for i := 0; i < n; i++ {
			maxDiag = math.Max(maxDiag, jtj.At(i, i))
		}
		diagFloor := 1e-12*maxDiag + math.SmallestNonzeroFloat64

		accepted := false
		for tries := 0; tries < 20 && !accepted; tries++ {
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					a.Set(i, j, jtj.At(i, j))
				}
				a.Set(i, i, jtj.At(i, i)+lambda*math.Max(jtj.At(i, i), diagFloor))
				rhs.SetVec(i, -jtf.AtVec(i))
			}

			if !solveStep(&dx, a, rhs) {
				lambda *= nu
				nu *= 2
				continue
			}

			for j := 0; j < n; j++ {
				xNew[j] = clampParam(x[j]+dx.AtVec(j), lower[j], upper[j])
			}
			if floats.Distance(xNew, x, 2) <= smoothVXTol*(smoothVXTol+floats.Norm(x, 2)) {
				// Step too small to matter, often pinned on a bound.
				converged = true
				break
			}

			for k, s := range samples {
				fiNew[k] = smoothVValue(xNew, s.C) - s.AAD
			}
			costNew := sumOfSquares(fiNew)

			if costNew < cost {
				improvement := (cost - costNew) / cost
				copy(x, xNew)
				cost = costNew
				lambda = math.Max(lambda/3.0, 1e-15)
				nu = 2.0
				computeSmoothVResiduals(samples, x, fi, jac, grad)
				accepted = true
				if improvement < smoothVFTol {
					converged = true
				}
			} else {
				lambda *= nu
				nu *= 2.0
				if lambda > smoothVMaxLamda {
					converged = true
					break
				}
			}
		}
		if !accepted && !converged {
			converged = true
		}
	}

	model := FitModel{A: x[pA], S0: x[pS0], Eps: x[pEps], B: x[pB]}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model, fmt.Errorf("%w: non-finite parameters %s", ErrFitDivergence, model)
		}
	}
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return model, fmt.Errorf("%w: non-finite cost", ErrFitDivergence)
	}
	if !converged {
		return model, fmt.Errorf("%w: no convergence after %d iterations", ErrFitDivergence, maxIter)
	}
	model.RSquared = smoothVRSquared(samples, model)
	if cost <= costFloor {
		return model, nil
	}
	lo, hi := samples[0].C, samples[len(samples)-1].C
	if lo > hi {
		lo, hi = hi, lo
	}
	if model.S0 < lo || model.S0 > hi {
		return model, fmt.Errorf("%w: vertex %g outside sampled interval [%g, %g]", ErrFitDivergence, model.S0, lo, hi)
	}
	if model.RSquared < smoothVMinRSquared {
		return model, fmt.Errorf("%w: poor fit, R2 %.3f", ErrFitDivergence, model.RSquared)
	}
	return model, nil
}

func computeSmoothVResiduals(samples []Sample, x, fi []float64, jac *mat.Dense, grad []float64) {
	for k, s := range samples {
		fi[k] = smoothVValue(x, s.C) - s.AAD
		smoothVGradient(x, s.C, grad)
		jac.SetRow(k, grad)
	}
}

// projectedGradientNorm ignores components that push a parameter further
// into a bound it already sits on.
func projectedGradientNorm(g *mat.VecDense, x, lower, upper []float64) float64 {
	norm := 0.0
	for i := range x {
		gi := g.AtVec(i)
		if (x[i] <= lower[i] && gi > 0) || (x[i] >= upper[i] && gi < 0) {
			continue
		}
		norm = math.Max(norm, math.Abs(gi))
	}
	return norm
}

func solveStep(dx *mat.VecDense, a *mat.Dense, rhs *mat.VecDense) bool {
	if err := dx.SolveVec(a, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return false
		}
	}
	for i := 0; i < dx.Len(); i++ {
		if v := dx.AtVec(i); math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func smoothVRSquared(samples []Sample, model FitModel) float64 {
	estimates := make([]float64, len(samples))
	values := make([]float64, len(samples))
	for i, s := range samples {
		estimates[i] = model.Eval(s.C)
		values[i] = s.AAD
	}
	r2 := stat.RSquaredFrom(estimates, values, nil)
	if math.IsNaN(r2) {
		return 0
	}
	return r2
}

func sumOfSquares(fi []float64) float64 {
	s := 0.0
	for _, v := range fi {
		s += v * v
	}
	return s
}

func clampParam(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
