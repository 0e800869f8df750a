package contsub

// GenerateSubtracted returns nb - scale*(co - baseline). Use the baseline
// reported by EstimateScale when the scale was estimated, or
// Median(co) for a manually chosen scale.
func GenerateSubtracted(nb, co Mat, scale, baseline float64) (Mat, error) {
	if err := checkShapes([]string{"narrowband", "continuum"}, nb, co); err != nil {
		return Mat{}, err
	}
	cs := NewMat()
	addWeighted(nb, 1, co, -scale, scale*baseline, &cs)
	return cs, nil
}
