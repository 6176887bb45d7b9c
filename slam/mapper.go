package slam

import (
	"fmt"
	"log"
)

// MapperConfig collects the parameters needed to build a Mapper. Resolution
// and Dimensions are required; the confidence factors fall back to defaults
// when left zero.
type MapperConfig struct {
	// Resolution is the world-units-per-cell scale of the map.
	Resolution float64
	// Dimensions gives the grid size per axis and fixes the dimensionality.
	Dimensions []int
	// WithOdometry enables scan-to-scan registration for pose tracking.
	WithOdometry bool

	OccupiedFactor float64
	FreeFactor     float64
	MaxConfidence  float64
}

// The confidence factors enter the grid as ln(f − 1/f), which is only
// positive for f above the golden ratio; defaults below that would make
// occupied updates lower the belief.
const (
	defaultOccupiedFactor = 2.0
	defaultFreeFactor     = 2.0
	defaultMaxConfidence  = 30.0
)

// Build validates the configuration and assembles a Mapper. Missing or
// nonsensical required fields produce a descriptive error rather than a
// partially constructed mapper.
func (c MapperConfig) Build() (*Mapper, error) {
	if c.Resolution <= 0 {
		return nil, fmt.Errorf("mapper resolution must be positive, got %v", c.Resolution)
	}
	if len(c.Dimensions) == 0 {
		return nil, fmt.Errorf("mapper needs at least one grid dimension")
	}

	occupied := c.OccupiedFactor
	if occupied == 0 {
		occupied = defaultOccupiedFactor
	}
	free := c.FreeFactor
	if free == 0 {
		free = defaultFreeFactor
	}
	maxConfidence := c.MaxConfidence
	if maxConfidence == 0 {
		maxConfidence = defaultMaxConfidence
	}

	grid, err := NewOccupancyGrid(c.Dimensions, occupied, free, maxConfidence)
	if err != nil {
		return nil, err
	}

	pose, err := NewPose(len(c.Dimensions), c.Resolution)
	if err != nil {
		return nil, err
	}
	// Start at the grid center so rays can fan out in every direction.
	for i, d := range c.Dimensions {
		pose.Translation[i] = float64(d) / 2
	}

	return &Mapper{
		grid:         grid,
		resolution:   c.Resolution,
		withOdometry: c.WithOdometry,
		currentPose:  pose,
		frameIndex:   1,
	}, nil
}

// Mapper accumulates successive point clouds into an occupancy grid while
// tracking the sensor pose by scan-to-scan registration. It is not safe for
// concurrent use; callers feeding it from multiple goroutines must serialize
// access themselves.
type Mapper struct {
	grid         *OccupancyGrid
	resolution   float64
	withOdometry bool

	currentPose Pose
	lastCloud   PointCloud
	frameIndex  uint8
}

// odometryConfig is the fixed registration setup used for scan matching.
func odometryConfig() ICPConfig {
	return ICPConfig{
		UseKDTree:            true,
		MaxIterations:        20,
		MSEIntervalThreshold: 0.01,
	}
}

// PushPointCloud folds a scan into the map. When odometry is enabled and
// this is a new frame, the previous cloud is registered against the incoming
// one and the estimated delta is composed into the current pose; a failed
// registration is logged and the pose simply goes stale for this frame. The
// cloud's points are then ray-cast into the grid from the pose's cell,
// freeing every grazed cell and marking each endpoint occupied.
func (m *Mapper) PushPointCloud(cloud PointCloud, isNewFrame bool) {
	if m.withOdometry && isNewFrame && len(m.lastCloud) > 0 {
		res, err := Register(m.lastCloud, cloud, odometryConfig())
		if err != nil {
			log.Printf("odometry registration failed, keeping previous pose: %v", err)
		} else {
			m.currentPose.AppendTranslation(res.Transform.Translation)
			m.currentPose.AppendRotationWrtCenter(res.Transform.Rotation)
		}
	}
	m.lastCloud = cloud.Clone()

	if isNewFrame {
		if m.frameIndex == 255 {
			m.frameIndex = 1
		} else {
			m.frameIndex++
		}
	}

	origin := m.currentPose.Translation
	for _, p := range cloud {
		scaled := m.currentPose.TransformPoint(p)
		line := PlotLine(origin, scaled)
		for _, cell := range line[:len(line)-1] {
			m.grid.FreeUpdate(cell, m.frameIndex)
		}
		m.grid.OccupiedUpdate(line[len(line)-1], m.frameIndex)
	}
}

// CurrentPose returns the mapper's pose as a rigid transform, dropping the
// resolution scale.
func (m *Mapper) CurrentPose() RigidTransform {
	return m.currentPose.Isometry()
}

// Grid exposes the underlying occupancy grid for rendering and inspection.
func (m *Mapper) Grid() *OccupancyGrid {
	return m.grid
}

// Resolution returns the world-units-per-cell scale of the map.
func (m *Mapper) Resolution() float64 {
	return m.resolution
}
