package contsub

import "errors"

var (
	// ErrShapeMismatch is returned when paired planes differ in size.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidRegion is returned for zero-area regions or regions not
	// fully inside the image.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrFitDivergence is reported when the smooth-V fit does not converge
	// within its bounds. EstimateScale recovers from it with the best grid
	// sample; it only surfaces through Estimate.FitErr and FitSmoothV.
	ErrFitDivergence = errors.New("fit divergence")

	// ErrCancelled is returned when the context is done mid-search.
	ErrCancelled = errors.New("cancelled")
)
