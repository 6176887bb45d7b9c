package slam

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// GeometryType represents the GeoJSON geometry type
type GeometryType string

const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
	GeometryPolygon    GeometryType = "Polygon"
	GeometryMultiPoint GeometryType = "MultiPoint"
)

// Geometry represents a GeoJSON geometry object
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature represents a GeoJSON feature with geometry and properties
type Feature struct {
	Type       string                 `json:"type"`
	Geometry   *Geometry              `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	ID         interface{}            `json:"id,omitempty"`
}

// FeatureCollection represents a GeoJSON FeatureCollection
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

// NewFeatureCollection creates a new empty FeatureCollection
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]*Feature, 0),
	}
}

// AddFeature appends a feature to the collection
func (fc *FeatureCollection) AddFeature(f *Feature) {
	fc.Features = append(fc.Features, f)
}

// NewFeature creates a Feature with the given geometry and properties
func NewFeature(geom *Geometry, props map[string]interface{}) *Feature {
	if props == nil {
		props = make(map[string]interface{})
	}
	return &Feature{
		Type:       "Feature",
		Geometry:   geom,
		Properties: props,
	}
}

// pointToGeometry converts an orb.Point to a GeoJSON Point geometry
func pointToGeometry(p orb.Point) *Geometry {
	coords, _ := json.Marshal([2]float64{p[0], p[1]})
	return &Geometry{Type: GeometryPoint, Coordinates: coords}
}

// lineStringToGeometry converts an orb.LineString to a GeoJSON LineString geometry
func lineStringToGeometry(ls orb.LineString) *Geometry {
	coords := make([][2]float64, len(ls))
	for i, p := range ls {
		coords[i] = [2]float64{p[0], p[1]}
	}
	coordsJSON, _ := json.Marshal(coords)
	return &Geometry{Type: GeometryLineString, Coordinates: coordsJSON}
}

// multiPointToGeometry converts an orb.MultiPoint to a GeoJSON MultiPoint geometry
func multiPointToGeometry(mp orb.MultiPoint) *Geometry {
	coords := make([][2]float64, len(mp))
	for i, p := range mp {
		coords[i] = [2]float64{p[0], p[1]}
	}
	coordsJSON, _ := json.Marshal(coords)
	return &Geometry{Type: GeometryMultiPoint, Coordinates: coordsJSON}
}

// ringToGeometry converts a closed orb.Ring to a GeoJSON Polygon geometry
func ringToGeometry(ring orb.Ring) *Geometry {
	coords := make([][2]float64, len(ring))
	for i, p := range ring {
		coords[i] = [2]float64{p[0], p[1]}
	}
	rings := [][][2]float64{coords}
	coordsJSON, _ := json.Marshal(rings)
	return &Geometry{Type: GeometryPolygon, Coordinates: coordsJSON}
}

// DefaultTrailSimplifyTolerance is the Douglas-Peucker tolerance (in world
// units) applied to the pose trail before export.
const DefaultTrailSimplifyTolerance = 0.05

// OccupiedCells returns the centers of all cells whose occupancy probability
// is at or above the threshold, in world coordinates.
func OccupiedCells(grid *OccupancyGrid, resolution, threshold float64) orb.MultiPoint {
	dims := grid.Dims()
	if len(dims) != 2 {
		return nil
	}

	var points orb.MultiPoint
	for cy := 0; cy < dims[1]; cy++ {
		for cx := 0; cx < dims[0]; cx++ {
			cell := Cell{cx, cy}
			if !grid.Touched(cell) {
				continue
			}
			p, _ := grid.Probability(cell)
			if p < threshold {
				continue
			}
			points = append(points, orb.Point{
				(float64(cx) + 0.5) * resolution,
				(float64(cy) + 0.5) * resolution,
			})
		}
	}
	return points
}

// GridToFeatureCollection exports a 2D occupancy grid as GeoJSON: one
// MultiPoint feature of occupied cell centers, the grid bounds as a Polygon,
// the sensor pose as a Point, and the simplified pose trail as a LineString.
// Coordinates are in world units (cell index times resolution).
func GridToFeatureCollection(grid *OccupancyGrid, pose RigidTransform, trail orb.LineString, sensorID string, resolution, threshold float64) *FeatureCollection {
	fc := NewFeatureCollection()

	dims := grid.Dims()
	if len(dims) != 2 {
		return fc
	}

	// Grid bounds
	bound := orb.Ring{
		{0, 0},
		{float64(dims[0]) * resolution, 0},
		{float64(dims[0]) * resolution, float64(dims[1]) * resolution},
		{0, float64(dims[1]) * resolution},
		{0, 0},
	}
	fc.AddFeature(NewFeature(ringToGeometry(bound), map[string]interface{}{
		"kind":     "bounds",
		"sensorId": sensorID,
		"area":     planar.Area(bound),
	}))

	// Occupied cell centers
	occupied := OccupiedCells(grid, resolution, threshold)
	if len(occupied) > 0 {
		fc.AddFeature(NewFeature(multiPointToGeometry(occupied), map[string]interface{}{
			"kind":      "occupied",
			"sensorId":  sensorID,
			"cellCount": len(occupied),
			"threshold": threshold,
		}))
	}

	// Sensor pose
	if len(pose.Translation) >= 2 {
		posePoint := orb.Point{
			pose.Translation[0] * resolution,
			pose.Translation[1] * resolution,
		}
		fc.AddFeature(NewFeature(pointToGeometry(posePoint), map[string]interface{}{
			"kind":     "pose",
			"sensorId": sensorID,
			"heading":  pose.Rotation.Angle(),
		}))
	}

	// Pose trail, scaled to world units and simplified
	if len(trail) > 1 {
		scaled := make(orb.LineString, len(trail))
		for i, p := range trail {
			scaled[i] = orb.Point{p[0] * resolution, p[1] * resolution}
		}
		simplified := simplify.DouglasPeucker(DefaultTrailSimplifyTolerance).
			Simplify(scaled.Clone())
		if ls, ok := simplified.(orb.LineString); ok && len(ls) > 1 {
			fc.AddFeature(NewFeature(lineStringToGeometry(ls), map[string]interface{}{
				"kind":     "trail",
				"sensorId": sensorID,
			}))
		}
	}

	return fc
}
