package slam

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// Point is an N-dimensional coordinate. Points are treated as immutable
// values: functions that produce new points always allocate, and nothing in
// this package mutates a point it did not create.
type Point []float64

// PointCloud is an ordered sequence of points. Duplicates are allowed.
// Coordinates must be finite; NaN/Inf breaks the ordering invariants of the
// spatial index and is rejected at the decoding boundary.
type PointCloud []Point

// Clone returns an independent copy of the point.
func (p Point) Clone() Point {
	out := make(Point, len(p))
	copy(out, p)
	return out
}

// Clone returns a deep copy of the cloud.
func (points PointCloud) Clone() PointCloud {
	out := make(PointCloud, len(points))
	for i, p := range points {
		out[i] = p.Clone()
	}
	return out
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	out := make(Point, len(p))
	for i := range p {
		out[i] = p[i] + q[i]
	}
	return out
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	out := make(Point, len(p))
	for i := range p {
		out[i] = p[i] - q[i]
	}
	return out
}

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point {
	out := make(Point, len(p))
	for i := range p {
		out[i] = p[i] * s
	}
	return out
}

// DistanceSquared returns the squared Euclidean distance between p and q.
func DistanceSquared(p, q Point) float64 {
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += d * d
	}
	return sum
}

// Centroid returns the mean point of the cloud, or the zero point of the
// given dimension when the cloud is empty.
func Centroid(points PointCloud, dim int) Point {
	mean := make(Point, dim)
	if len(points) == 0 {
		return mean
	}
	for _, p := range points {
		for i := range mean {
			mean[i] += p[i]
		}
	}
	inv := 1.0 / float64(len(points))
	for i := range mean {
		mean[i] *= inv
	}
	return mean
}

// NearestNeighbourNaive scans all candidate points and returns the one
// closest to p. It is the exhaustive fallback used when the spatial index is
// disabled, and the oracle the index is tested against. Returns false when
// candidates is empty.
func NearestNeighbourNaive(p Point, candidates PointCloud) (Point, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	best := candidates[0]
	bestDist := math.MaxFloat64
	for _, c := range candidates {
		if d := DistanceSquared(p, c); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best, true
}

// TransformPointCloud applies t to every point and returns a new cloud. The
// input cloud is not mutated.
func TransformPointCloud(points PointCloud, t RigidTransform) PointCloud {
	out := make(PointCloud, len(points))
	for i, p := range points {
		out[i] = t.TransformPoint(p)
	}
	return out
}

// VoxelDownsample bins points into cubic voxels of the given edge size and
// replaces each occupied voxel with the centroid of its points. Point order
// is not preserved.
func VoxelDownsample(points PointCloud, voxelSize float64) PointCloud {
	if len(points) == 0 || voxelSize <= 0 {
		return points
	}
	buckets := make(map[string]PointCloud)
	for _, p := range points {
		var key strings.Builder
		for _, c := range p {
			key.WriteString(strconv.FormatInt(int64(math.Floor(c/voxelSize)), 10))
			key.WriteByte(':')
		}
		k := key.String()
		buckets[k] = append(buckets[k], p)
	}

	out := make(PointCloud, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, Centroid(bucket, len(bucket[0])))
	}
	return out
}

// Range is an inclusive per-dimension coordinate interval.
type Range struct {
	Min, Max float64
}

// GeneratePointCloud produces count random points, one coordinate per range,
// from a deterministic seed so tests are reproducible.
func GeneratePointCloud(count int, ranges []Range, seed int64) PointCloud {
	rng := rand.New(rand.NewSource(seed))
	out := make(PointCloud, count)
	for i := range out {
		p := make(Point, len(ranges))
		for d, r := range ranges {
			p[d] = r.Min + rng.Float64()*(r.Max-r.Min)
		}
		out[i] = p
	}
	return out
}
