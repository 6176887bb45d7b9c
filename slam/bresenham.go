package slam

import "math"

// Cell is an N-dimensional integer grid coordinate.
type Cell []int

// PlotLine walks the discrete grid cells on the segment from start to end,
// always including both endpoints. The dominant axis (largest absolute
// delta) advances one cell per step; the remaining axes accumulate
// fractional error and step when it crosses 1 − 1/(N+1). The returned
// sequence runs from start to end regardless of direction.
func PlotLine(start, end Point) []Cell {
	dim := len(start)
	deltas := make([]float64, dim)
	steps := make([]float64, dim)
	primary := 0
	for i := 0; i < dim; i++ {
		deltas[i] = math.Abs(end[i] - start[i])
		steps[i] = 1
		if end[i] <= start[i] {
			steps[i] = -1
		}
		if deltas[i] > deltas[primary] {
			primary = i
		}
	}

	stepThreshold := 1 - 1/float64(dim+1)
	current := start.Clone()
	errs := make([]float64, dim)
	cells := make([]Cell, 0, int(deltas[primary])+1)

	for math.Abs(current[primary]-end[primary]) >= 1 {
		cells = append(cells, truncateToCell(current))

		for axis := 0; axis < dim; axis++ {
			if axis == primary {
				continue
			}
			errs[axis] += deltas[axis] / deltas[primary]
			if errs[axis] >= stepThreshold {
				current[axis] += steps[axis]
				errs[axis]--
			}
		}
		current[primary] += steps[primary]
	}

	return append(cells, truncateToCell(end))
}

// truncateToCell converts a point to the integer cell containing it,
// truncating toward zero.
func truncateToCell(p Point) Cell {
	c := make(Cell, len(p))
	for i, v := range p {
		c[i] = int(v)
	}
	return c
}
