package slam

import (
	"errors"
	"fmt"
)

// Registration error taxonomy. Precondition errors are returned before any
// iteration runs; DidNotConvergeError is returned when the iteration budget
// is exhausted. Registration never panics on malformed-but-finite input.
var (
	// ErrSourceCloudEmpty is returned when the source cloud has no points.
	ErrSourceCloudEmpty = errors.New("source point cloud is empty")
	// ErrTargetCloudEmpty is returned when the target cloud has no points.
	ErrTargetCloudEmpty = errors.New("target point cloud is empty")
	// ErrZeroIterationBudget is returned when MaxIterations is zero.
	ErrZeroIterationBudget = errors.New("iteration budget is zero")
	// ErrIntervalThresholdTooLow is returned when the interval threshold is
	// at or below machine epsilon; convergence would be unreachable.
	ErrIntervalThresholdTooLow = errors.New("MSE interval threshold is at or below machine epsilon")
	// ErrAbsoluteThresholdTooLow is returned when the optional absolute
	// threshold is NaN or at or below machine epsilon.
	ErrAbsoluteThresholdTooLow = errors.New("MSE absolute threshold is NaN or at or below machine epsilon")
	// ErrNoNearestNeighbour is returned when correspondence search produces
	// no neighbour. The empty-target check makes this unreachable today; it
	// is kept for variants that filter correspondences.
	ErrNoNearestNeighbour = errors.New("no nearest neighbour found")
	// ErrDimensionMismatch is returned when the clouds disagree on
	// dimensionality or contain points of mixed dimension.
	ErrDimensionMismatch = errors.New("point clouds have mismatched dimensions")
	// ErrDidNotConverge reports iteration-budget exhaustion; returned errors
	// carry diagnostics as a DidNotConvergeError and match this sentinel
	// through errors.Is.
	ErrDidNotConverge = errors.New("registration did not converge")
)

// DidNotConvergeError is returned when the iteration budget runs out before
// either convergence test passes. It surfaces the matched centroids of the
// last failed iteration for diagnostics.
type DidNotConvergeError struct {
	Iterations  int
	MeanSource  Point
	MeanMatched Point
}

func (e *DidNotConvergeError) Error() string {
	return fmt.Sprintf("registration did not converge after %d iterations (source centroid %v, matched centroid %v)",
		e.Iterations, e.MeanSource, e.MeanMatched)
}

// Is lets errors.Is match the ErrDidNotConverge sentinel.
func (e *DidNotConvergeError) Is(target error) bool {
	return target == ErrDidNotConverge
}
