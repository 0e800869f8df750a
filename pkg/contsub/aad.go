package contsub

// AAD returns the average absolute deviation of m, mean(|m - mean(m)|).
// It is the objective minimised when searching for the continuum scale: once
// the continuum is subtracted correctly the residual spread is smallest.
func AAD(m Mat) float64 {
	return meanAbsDeviation(m, matMean(m))
}

// subtractedAAD evaluates AAD(nb - c*(co - baseline)) using diff as scratch.
func subtractedAAD(nb, co Mat, baseline, c float64, diff *Mat) float64 {
	addWeighted(nb, 1, co, -c, c*baseline, diff)
	return AAD(*diff)
}
