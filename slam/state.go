package slam

import (
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
)

// sensorState is everything the tracker holds for one sensor: its mapper,
// the history of estimated poses, and bookkeeping for the HTTP endpoints.
type sensorState struct {
	mapper     *Mapper
	trail      orb.LineString
	color      string
	lastUpdate time.Time
	scanCount  int
}

// SensorTracker owns one Mapper per sensor and serializes all access to
// them. Mappers are single-threaded by design; the tracker's mutex is the
// external synchronization that lets MQTT callbacks and HTTP handlers share
// them safely.
type SensorTracker struct {
	mu      sync.Mutex
	sensors map[string]*sensorState
	grid    GridConfig
}

// NewSensorTracker creates a tracker that builds mappers from the given
// grid settings on first contact with each sensor.
func NewSensorTracker(grid GridConfig) *SensorTracker {
	return &SensorTracker{
		sensors: make(map[string]*sensorState),
		grid:    grid,
	}
}

// SetColor sets the display color for a sensor
func (st *SensorTracker) SetColor(sensorID, hexColor string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	state := st.sensors[sensorID]
	if state == nil {
		state = &sensorState{}
		st.sensors[sensorID] = state
	}
	state.color = hexColor
}

// PushScan feeds a point cloud into the sensor's mapper, creating the
// mapper on first contact. The estimated pose after the update is returned
// so callers can publish it.
func (st *SensorTracker) PushScan(sensorID string, cloud PointCloud, isNewFrame bool) (RigidTransform, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	state := st.sensors[sensorID]
	if state == nil {
		state = &sensorState{}
		st.sensors[sensorID] = state
	}
	if state.mapper == nil {
		mapper, err := st.grid.MapperConfig().Build()
		if err != nil {
			return RigidTransform{}, fmt.Errorf("building mapper for %s: %w", sensorID, err)
		}
		state.mapper = mapper
	}

	state.mapper.PushPointCloud(cloud, isNewFrame)
	state.lastUpdate = time.Now()
	state.scanCount++

	pose := state.mapper.CurrentPose()
	if isNewFrame && len(pose.Translation) >= 2 {
		state.trail = append(state.trail, orb.Point{pose.Translation[0], pose.Translation[1]})
	}

	return pose, nil
}

// Pose returns the current pose for a sensor, if it has a mapper.
func (st *SensorTracker) Pose(sensorID string) (RigidTransform, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	state := st.sensors[sensorID]
	if state == nil || state.mapper == nil {
		return RigidTransform{}, false
	}
	return state.mapper.CurrentPose(), true
}

// Grid returns the occupancy grid for a sensor, if it has a mapper.
// The grid is shared, not copied; hold no reference across tracker calls
// that might reset the sensor.
func (st *SensorTracker) Grid(sensorID string) (*OccupancyGrid, float64, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	state := st.sensors[sensorID]
	if state == nil || state.mapper == nil {
		return nil, 0, false
	}
	return state.mapper.Grid(), state.mapper.Resolution(), true
}

// Trail returns a copy of the sensor's pose history as a line string in
// grid coordinates.
func (st *SensorTracker) Trail(sensorID string) orb.LineString {
	st.mu.Lock()
	defer st.mu.Unlock()

	state := st.sensors[sensorID]
	if state == nil {
		return nil
	}
	return state.trail.Clone()
}

// Color returns the configured display color for a sensor, or a default.
func (st *SensorTracker) Color(sensorID string) string {
	st.mu.Lock()
	defer st.mu.Unlock()

	state := st.sensors[sensorID]
	if state == nil || state.color == "" {
		return "#FF0000"
	}
	return state.color
}

// Reset discards a sensor's mapper and trail. The next scan starts a fresh
// map from an identity pose.
func (st *SensorTracker) Reset(sensorID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	state := st.sensors[sensorID]
	if state == nil {
		return
	}
	state.mapper = nil
	state.trail = nil
	state.scanCount = 0
}

// SensorIDs returns the IDs of all sensors the tracker has seen.
func (st *SensorTracker) SensorIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()

	ids := make([]string, 0, len(st.sensors))
	for id := range st.sensors {
		ids = append(ids, id)
	}
	return ids
}

// HasMaps returns true if at least one sensor has an active mapper
func (st *SensorTracker) HasMaps() bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, state := range st.sensors {
		if state.mapper != nil {
			return true
		}
	}
	return false
}

// ScanCount returns how many scans a sensor has contributed.
func (st *SensorTracker) ScanCount(sensorID string) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	state := st.sensors[sensorID]
	if state == nil {
		return 0
	}
	return state.scanCount
}
