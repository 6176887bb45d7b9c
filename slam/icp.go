package slam

import (
	"math"
)

// machineEpsilon is the float64 unit roundoff; convergence thresholds at or
// below it can never be satisfied by the interval test.
var machineEpsilon = math.Nextafter(1, 2) - 1

// ICPConfig controls a Register call.
type ICPConfig struct {
	// UseKDTree selects correspondence search via a k-d tree built from the
	// target cloud instead of an exhaustive scan. Increasingly effective as
	// the target cloud grows.
	UseKDTree bool
	// MaxIterations bounds the iteration count; it is the only bound on the
	// algorithm's runtime. Must be positive.
	MaxIterations int
	// MSEAbsoluteThreshold, when non-nil, declares convergence as soon as
	// the MSE drops below it, regardless of the interval test.
	MSEAbsoluteThreshold *float64
	// MSEIntervalThreshold declares convergence when the MSE improvement
	// between consecutive iterations falls below it. Must exceed machine
	// epsilon.
	MSEIntervalThreshold float64
}

// DefaultICPConfig returns the configuration the mapper uses internally:
// exhaustive-scan correspondence, 20 iterations, interval convergence at
// 0.01.
func DefaultICPConfig() ICPConfig {
	return ICPConfig{
		MaxIterations:        20,
		MSEIntervalThreshold: 0.01,
	}
}

// ICPResult is produced only on convergence.
type ICPResult struct {
	// Transform maps the source cloud onto the target cloud.
	Transform RigidTransform
	// MSE is the mean squared distance between the transformed source
	// points and their matched target neighbours at convergence.
	MSE float64
	// Iterations is the zero-based index of the converging iteration.
	Iterations int
}

// Register estimates the rigid transform aligning source onto target using
// iterative closest point: alternate nearest-neighbour correspondence with
// SVD re-estimation of the accumulated transform until the MSE stabilizes.
//
// Preconditions are checked before any iteration and each maps to a distinct
// sentinel error. On budget exhaustion a *DidNotConvergeError is returned.
func Register(source, target PointCloud, cfg ICPConfig) (*ICPResult, error) {
	if len(source) == 0 {
		return nil, ErrSourceCloudEmpty
	}
	if len(target) == 0 {
		return nil, ErrTargetCloudEmpty
	}
	if cfg.MaxIterations == 0 {
		return nil, ErrZeroIterationBudget
	}
	if cfg.MSEIntervalThreshold <= machineEpsilon {
		return nil, ErrIntervalThresholdTooLow
	}
	if cfg.MSEAbsoluteThreshold != nil {
		abs := *cfg.MSEAbsoluteThreshold
		if math.IsNaN(abs) || abs <= machineEpsilon {
			return nil, ErrAbsoluteThresholdTooLow
		}
	}

	dim := len(source[0])
	if err := checkDimensions(source, dim); err != nil {
		return nil, err
	}
	if err := checkDimensions(target, dim); err != nil {
		return nil, err
	}

	var index *KDTree
	if cfg.UseKDTree {
		index = NewKDTree(dim, target)
	}

	current, err := IdentityTransform(dim)
	if err != nil {
		return nil, err
	}
	transformed := make(PointCloud, len(source))
	for i, p := range source {
		transformed[i] = p.Clone()
	}
	matched := make(PointCloud, len(source))

	// Initialized to the maximum representable value so the first iteration
	// can never pass the interval test by accident.
	previousMSE := math.MaxFloat64

	var lastMeanSource, lastMeanMatched Point
	for iteration := 0; iteration < cfg.MaxIterations; iteration++ {
		for i, p := range transformed {
			neighbour, ok := nearestNeighbour(p, target, index)
			if !ok {
				return nil, ErrNoNearestNeighbour
			}
			matched[i] = neighbour
		}

		covariance, meanSource, meanMatched := crossCovariance(transformed, matched, dim)
		current, err = updateTransform(current, covariance, meanSource, meanMatched)
		if err != nil {
			return nil, err
		}

		for i, p := range source {
			transformed[i] = current.TransformPoint(p)
		}
		mse := meanSquaredError(transformed, matched)

		if (cfg.MSEAbsoluteThreshold != nil && mse < *cfg.MSEAbsoluteThreshold) ||
			math.Abs(previousMSE-mse) < cfg.MSEIntervalThreshold {
			return &ICPResult{Transform: current, MSE: mse, Iterations: iteration}, nil
		}

		previousMSE = mse
		lastMeanSource, lastMeanMatched = meanSource, meanMatched
	}

	return nil, &DidNotConvergeError{
		Iterations:  cfg.MaxIterations,
		MeanSource:  lastMeanSource,
		MeanMatched: lastMeanMatched,
	}
}

// nearestNeighbour resolves one correspondence via the index when present,
// otherwise by exhaustive scan.
func nearestNeighbour(p Point, target PointCloud, index *KDTree) (Point, bool) {
	if index != nil {
		return index.Nearest(p)
	}
	return NearestNeighbourNaive(p, target)
}

// meanSquaredError is the mean squared Euclidean distance between the
// clouds, pairwise by index.
func meanSquaredError(a, b PointCloud) float64 {
	var sum float64
	for i := range a {
		sum += DistanceSquared(a[i], b[i])
	}
	return sum / float64(len(a))
}

func checkDimensions(points PointCloud, dim int) error {
	for _, p := range points {
		if len(p) != dim {
			return ErrDimensionMismatch
		}
	}
	return nil
}
