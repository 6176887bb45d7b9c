package slam

import (
	"fmt"
	"math"
)

// gridCell is one occupancy cell: a log-odds belief plus the index of the
// frame that last touched it. Frame 0 is the "never updated" sentinel; the
// mapper's frame counter wraps 1..=255 and never produces 0.
type gridCell struct {
	logOdds     float64
	updateFrame uint8
}

// OccupancyGrid is a dense N-dimensional grid of log-odds cells. It is
// created once with fixed dimensions and mutated in place; it is never
// resized. Updates are deduplicated per frame via the 8-bit frame tag.
type OccupancyGrid struct {
	cells   []gridCell
	dims    []int
	strides []int

	// positiveFactor and negativeFactor are the log-odds increments derived
	// from the occupied/free confidence factors as ln(f − 1/f).
	positiveFactor float64
	negativeFactor float64
	maxConfidence  float64
}

// NewOccupancyGrid allocates a grid with the given per-dimension sizes.
// occupiedFactor and freeFactor are confidence multipliers and must exceed 1
// so their log-odds form ln(f − 1/f) is defined and positive-signed;
// maxConfidence clamps occupied belief (free belief has no floor).
func NewOccupancyGrid(dims []int, occupiedFactor, freeFactor, maxConfidence float64) (*OccupancyGrid, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("grid needs at least one dimension")
	}
	total := 1
	strides := make([]int, len(dims))
	for i, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("grid dimension %d must be positive, got %d", i, d)
		}
		strides[i] = total
		total *= d
	}
	if occupiedFactor <= 1 || freeFactor <= 1 {
		return nil, fmt.Errorf("confidence factors must exceed 1, got occupied=%v free=%v", occupiedFactor, freeFactor)
	}
	if maxConfidence <= 0 {
		return nil, fmt.Errorf("max confidence must be positive, got %v", maxConfidence)
	}

	return &OccupancyGrid{
		cells:          make([]gridCell, total),
		dims:           append([]int(nil), dims...),
		strides:        strides,
		positiveFactor: math.Log(occupiedFactor - 1/occupiedFactor),
		negativeFactor: math.Log(freeFactor - 1/freeFactor),
		maxConfidence:  maxConfidence,
	}, nil
}

// Dims returns the grid dimensions.
func (g *OccupancyGrid) Dims() []int {
	return append([]int(nil), g.dims...)
}

// index flattens a cell coordinate via the row-major strides. Coordinates
// outside the grid report false; updates out of range are no-ops.
func (g *OccupancyGrid) index(c Cell) (int, bool) {
	if len(c) != len(g.dims) {
		return 0, false
	}
	idx := 0
	for i, coord := range c {
		if coord < 0 || coord >= g.dims[i] {
			return 0, false
		}
		idx += coord * g.strides[i]
	}
	return idx, true
}

// OccupiedUpdate raises the cell's occupied belief for the given frame. A
// cell already at max confidence is left alone. When the cell was already
// touched earlier in the same frame — a ray pass marked it free before its
// own endpoint landed on it — both factors are added at once, cancelling the
// provisional decrement and applying the occupied increment in one step.
func (g *OccupancyGrid) OccupiedUpdate(c Cell, frame uint8) {
	idx, ok := g.index(c)
	if !ok {
		return
	}
	cell := &g.cells[idx]
	if cell.logOdds >= g.maxConfidence {
		return
	}
	if cell.updateFrame == frame {
		cell.logOdds += g.positiveFactor + g.negativeFactor
		return
	}
	cell.updateFrame = frame
	cell.logOdds += g.positiveFactor
}

// FreeUpdate lowers the cell's belief the first time it is touched in a
// frame; repeated touches within the same frame are ignored so a single
// ray's grazed cells are not over-penalized. There is no negative clamp.
func (g *OccupancyGrid) FreeUpdate(c Cell, frame uint8) {
	idx, ok := g.index(c)
	if !ok {
		return
	}
	cell := &g.cells[idx]
	if cell.updateFrame != frame {
		cell.logOdds -= g.negativeFactor
		cell.updateFrame = frame
	}
}

// Probability converts the cell's log-odds back to an occupancy probability.
// Returns false for coordinates outside the grid.
func (g *OccupancyGrid) Probability(c Cell) (float64, bool) {
	idx, ok := g.index(c)
	if !ok {
		return 0, false
	}
	odds := math.Exp(g.cells[idx].logOdds)
	return odds / (odds + 1), true
}

// LogOdds exposes the raw belief of a cell, mainly for rendering and tests.
func (g *OccupancyGrid) LogOdds(c Cell) (float64, bool) {
	idx, ok := g.index(c)
	if !ok {
		return 0, false
	}
	return g.cells[idx].logOdds, true
}

// Touched reports whether the cell has ever been updated.
func (g *OccupancyGrid) Touched(c Cell) bool {
	idx, ok := g.index(c)
	return ok && g.cells[idx].updateFrame != 0
}
