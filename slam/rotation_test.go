package slam

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestIdentityRotation(t *testing.T) {
	for _, dim := range []int{2, 3} {
		rot, err := IdentityRotation(dim)
		if err != nil {
			t.Fatalf("IdentityRotation(%d): %v", dim, err)
		}
		p := make(Point, dim)
		for i := range p {
			p[i] = float64(i + 1)
		}
		if got := rot.TransformVector(p); !pointsAlmostEqual(got, p) {
			t.Errorf("identity rotation moved %v to %v", p, got)
		}
		if !almostEqual(rot.Angle(), 0) {
			t.Errorf("identity rotation angle = %v, want 0", rot.Angle())
		}
	}

	if _, err := IdentityRotation(4); err == nil {
		t.Error("expected an error for dimension 4")
	}
}

func TestRotation2(t *testing.T) {
	tests := []struct {
		name  string
		theta float64
		in    Point
		want  Point
	}{
		{name: "quarter turn", theta: math.Pi / 2, in: Point{1, 0}, want: Point{0, 1}},
		{name: "half turn", theta: math.Pi, in: Point{1, 2}, want: Point{-1, -2}},
		{name: "negative quarter turn", theta: -math.Pi / 2, in: Point{0, 1}, want: Point{1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rot := NewRotation2(tt.theta)
			if got := rot.TransformVector(tt.in); !pointsAlmostEqual(got, tt.want) {
				t.Errorf("rotate(%v) by %v = %v, want %v", tt.in, tt.theta, got, tt.want)
			}
			if !almostEqual(rot.Angle(), tt.theta) {
				t.Errorf("Angle() = %v, want %v", rot.Angle(), tt.theta)
			}
		})
	}
}

func TestRotation2Compose(t *testing.T) {
	a := NewRotation2(math.Pi / 6)
	b := NewRotation2(math.Pi / 3)

	composed := a.Compose(b)
	if !almostEqual(composed.Angle(), math.Pi/2) {
		t.Errorf("composed angle = %v, want %v", composed.Angle(), math.Pi/2)
	}

	p := Point{1, 0}
	direct := composed.TransformVector(p)
	stepped := a.TransformVector(b.TransformVector(p))
	if !pointsAlmostEqual(direct, stepped) {
		t.Errorf("composed rotation %v disagrees with sequential application %v", direct, stepped)
	}
}

func TestRotation3AxisAngle(t *testing.T) {
	tests := []struct {
		name  string
		axis  Point
		angle float64
		in    Point
		want  Point
	}{
		{
			name:  "quarter turn about z",
			axis:  Point{0, 0, 1},
			angle: math.Pi / 2,
			in:    Point{1, 0, 0},
			want:  Point{0, 1, 0},
		},
		{
			name:  "half turn about x",
			axis:  Point{1, 0, 0},
			angle: math.Pi,
			in:    Point{0, 1, 1},
			want:  Point{0, -1, -1},
		},
		{
			name:  "unnormalized axis behaves like unit axis",
			axis:  Point{0, 0, 10},
			angle: math.Pi / 2,
			in:    Point{1, 0, 0},
			want:  Point{0, 1, 0},
		},
		{
			name:  "axis-parallel vector is fixed",
			axis:  Point{0, 0, 1},
			angle: 1.3,
			in:    Point{0, 0, 4},
			want:  Point{0, 0, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rot := NewRotation3(tt.axis, tt.angle)
			if got := rot.TransformVector(tt.in); !pointsAlmostEqual(got, tt.want) {
				t.Errorf("rotate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRotation3Angle(t *testing.T) {
	for _, angle := range []float64{0, 0.3, math.Pi / 2, 2.9} {
		rot := NewRotation3(Point{0, 1, 0}, angle)
		if !almostEqual(rot.Angle(), angle) {
			t.Errorf("Angle() = %v, want %v", rot.Angle(), angle)
		}
	}
}

func TestRotation3Compose(t *testing.T) {
	a := NewRotation3(Point{0, 0, 1}, math.Pi/4)
	b := NewRotation3(Point{1, 0, 0}, math.Pi/3)

	p := Point{0.3, -1.2, 2.5}
	direct := a.Compose(b).TransformVector(p)
	stepped := a.TransformVector(b.TransformVector(p))
	if !pointsAlmostEqual(direct, stepped) {
		t.Errorf("composed rotation %v disagrees with sequential application %v", direct, stepped)
	}
}

func TestRotationFromMatrix(t *testing.T) {
	t.Run("2D quarter turn", func(t *testing.T) {
		m := mat.NewDense(2, 2, []float64{
			0, -1,
			1, 0,
		})
		rot, err := RotationFromMatrix(m)
		if err != nil {
			t.Fatal(err)
		}
		if got := rot.TransformVector(Point{1, 0}); !pointsAlmostEqual(got, Point{0, 1}) {
			t.Errorf("rotate([1 0]) = %v, want [0 1]", got)
		}
	})

	t.Run("3D round trip", func(t *testing.T) {
		// Build the matrix from a known rotation, convert it back, and
		// compare the action on a probe vector.
		angles := []float64{0.2, 1.1, 2.8, math.Pi - 0.01}
		axes := []Point{{0, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, -2, 3}}
		probe := Point{0.7, -0.4, 1.9}

		for i, angle := range angles {
			want := NewRotation3(axes[i], angle)
			m := rotationMatrix3(want)
			got, err := RotationFromMatrix(m)
			if err != nil {
				t.Fatal(err)
			}
			if !pointsAlmostEqual(got.TransformVector(probe), want.TransformVector(probe)) {
				t.Errorf("axis %v angle %v: round trip changed the rotation", axes[i], angle)
			}
		}
	})

	t.Run("unsupported dimension", func(t *testing.T) {
		if _, err := RotationFromMatrix(mat.NewDense(4, 4, nil)); err == nil {
			t.Error("expected an error for a 4x4 matrix")
		}
	})

	t.Run("non-square matrix", func(t *testing.T) {
		if _, err := RotationFromMatrix(mat.NewDense(2, 3, nil)); err == nil {
			t.Error("expected an error for a non-square matrix")
		}
	})
}

// rotationMatrix3 builds the 3x3 matrix of a rotation by transforming the
// basis vectors.
func rotationMatrix3(r Rotation) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for col := 0; col < 3; col++ {
		e := make(Point, 3)
		e[col] = 1
		out := r.TransformVector(e)
		for row := 0; row < 3; row++ {
			m.Set(row, col, out[row])
		}
	}
	return m
}
