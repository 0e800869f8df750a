package contsub

// RegionStats cuts r out of both planes and returns the cut-outs together
// with the continuum median over r. The cut-outs are contiguous copies owned
// by the caller.
func RegionStats(nb, co Mat, r Region) (nbSub, coSub Mat, baseline float64, err error) {
	if err := checkShapes([]string{"narrowband", "continuum"}, nb, co); err != nil {
		return Mat{}, Mat{}, 0, err
	}
	if err := r.Validate(nb.Cols(), nb.Rows()); err != nil {
		return Mat{}, Mat{}, 0, err
	}

	nbSub = cloneRegion(nb, r)
	coSub = cloneRegion(co, r)
	return nbSub, coSub, Median(coSub), nil
}

func cloneRegion(m Mat, r Region) Mat {
	view := m.Region(r.Rect())
	sub := view.Clone()
	view.Close()
	return sub
}
