package slam

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Rotation is the rotation component of a rigid transform. The algorithms in
// this package are dimension-generic; the representation is not, so the two
// supported dimensionalities each get their own implementation: a unit
// complex number for 2D and a unit quaternion for 3D.
type Rotation interface {
	// Dim reports the dimensionality the rotation operates in.
	Dim() int
	// TransformVector rotates v. Points and vectors rotate identically;
	// RigidTransform adds the translation for points.
	TransformVector(v Point) Point
	// Compose returns the rotation equivalent to applying other first and
	// then the receiver.
	Compose(other Rotation) Rotation
	// Angle returns the rotation magnitude in radians.
	Angle() float64
}

// IdentityRotation returns the neutral rotation for the given dimension.
// Only 2 and 3 dimensions have rotation representations.
func IdentityRotation(dim int) (Rotation, error) {
	switch dim {
	case 2:
		return rotation2{c: complex(1, 0)}, nil
	case 3:
		return rotation3{q: quat.Number{Real: 1}}, nil
	default:
		return nil, fmt.Errorf("no rotation representation for dimension %d", dim)
	}
}

// NewRotation2 returns a planar rotation of theta radians.
func NewRotation2(theta float64) Rotation {
	return rotation2{c: cmplx.Rect(1, theta)}
}

// NewRotation3 returns a spatial rotation of angle radians about the given
// axis. The axis need not be normalized.
func NewRotation3(axis Point, angle float64) Rotation {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	if n == 0 {
		return rotation3{q: quat.Number{Real: 1}}
	}
	s := math.Sin(angle/2) / n
	return rotation3{q: quat.Number{
		Real: math.Cos(angle / 2),
		Imag: axis[0] * s,
		Jmag: axis[1] * s,
		Kmag: axis[2] * s,
	}}
}

// RotationFromMatrix extracts a Rotation from a square rotation matrix of
// size 2 or 3. The matrix must be a proper rotation (orthonormal, det +1);
// RigidAlignment guarantees this before calling.
func RotationFromMatrix(m mat.Matrix) (Rotation, error) {
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("rotation matrix must be square, got %dx%d", r, c)
	}
	switch r {
	case 2:
		return rotation2{c: cmplx.Rect(1, math.Atan2(m.At(1, 0), m.At(0, 0)))}, nil
	case 3:
		return rotation3{q: quatFromMatrix(m)}, nil
	default:
		return nil, fmt.Errorf("no rotation representation for dimension %d", r)
	}
}

// rotation2 is a unit complex number: rotating (x, y) is multiplying x+iy.
type rotation2 struct {
	c complex128
}

func (r rotation2) Dim() int { return 2 }

func (r rotation2) TransformVector(v Point) Point {
	re, im := real(r.c), imag(r.c)
	return Point{re*v[0] - im*v[1], im*v[0] + re*v[1]}
}

func (r rotation2) Compose(other Rotation) Rotation {
	o := other.(rotation2)
	return rotation2{c: r.c * o.c}
}

func (r rotation2) Angle() float64 {
	return cmplx.Phase(r.c)
}

// rotation3 is a unit quaternion; v rotates as q v q*.
type rotation3 struct {
	q quat.Number
}

func (r rotation3) Dim() int { return 3 }

func (r rotation3) TransformVector(v Point) Point {
	p := quat.Number{Imag: v[0], Jmag: v[1], Kmag: v[2]}
	out := quat.Mul(quat.Mul(r.q, p), quat.Conj(r.q))
	return Point{out.Imag, out.Jmag, out.Kmag}
}

func (r rotation3) Compose(other Rotation) Rotation {
	o := other.(rotation3)
	return rotation3{q: quat.Mul(r.q, o.q)}
}

func (r rotation3) Angle() float64 {
	w := r.q.Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	return 2 * math.Acos(math.Abs(w))
}

// quat3Conj returns the conjugate quaternion, the inverse of a unit
// rotation quaternion.
func quat3Conj(r rotation3) quat.Number {
	return quat.Conj(r.q)
}

// quatFromMatrix converts a proper 3x3 rotation matrix to a unit quaternion
// using Shepperd's method: branch on the largest of the four squared
// components to keep the divisor well away from zero.
func quatFromMatrix(m mat.Matrix) quat.Number {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	trace := m00 + m11 + m22
	var q quat.Number
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		q = quat.Number{
			Real: s / 4,
			Imag: (m21 - m12) / s,
			Jmag: (m02 - m20) / s,
			Kmag: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: s / 4,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: s / 4,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: s / 4,
		}
	}

	// Normalize to absorb accumulated floating-point drift.
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	return quat.Scale(1/n, q)
}
