package slam

import (
	"gonum.org/v1/gonum/mat"
)

// crossCovariance accumulates the cross-covariance matrix of two equal-length
// point sets about their centroids:
//
//	M = Σ (aᵢ − meanA) ⊗ (bᵢ − meanB)
//
// and returns M together with both centroids.
func crossCovariance(a, b PointCloud, dim int) (*mat.Dense, Point, Point) {
	meanA := Centroid(a, dim)
	meanB := Centroid(b, dim)

	m := mat.NewDense(dim, dim, nil)
	for idx := range a {
		da := a[idx].Sub(meanA)
		db := b[idx].Sub(meanB)
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				m.Set(i, j, m.At(i, j)+da[i]*db[j])
			}
		}
	}
	return m, meanA, meanB
}

// properRotation solves the orthogonal Procrustes problem for the
// cross-covariance matrix m: decompose m = U Σ Vᵀ and form R = V Uᵀ, which
// maps the source set onto the target set. When the raw product is a
// reflection (det < 0, possible for degenerate or near-collinear inputs),
// the last column of V is negated and R recomputed, guaranteeing det(R) = +1.
//
// SVD non-convergence is not expected for finite input and is treated as an
// unrecoverable internal fault.
func properRotation(m *mat.Dense) *mat.Dense {
	dim, _ := m.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDFull); !ok {
		panic("slam: SVD of cross-covariance matrix did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r := mat.NewDense(dim, dim, nil)
	r.Mul(&v, u.T())
	if mat.Det(r) < 0 {
		for i := 0; i < dim; i++ {
			v.Set(i, dim-1, -v.At(i, dim-1))
		}
		r.Mul(&v, u.T())
	}
	return r
}

// updateTransform estimates the incremental rigid transform aligning the
// centered source set onto the centered target set and pre-multiplies it
// onto the accumulated transform. It is pure: the inputs are not mutated.
func updateTransform(accumulated RigidTransform, covariance *mat.Dense, meanA, meanB Point) (RigidTransform, error) {
	r := properRotation(covariance)
	rot, err := RotationFromMatrix(r)
	if err != nil {
		return RigidTransform{}, err
	}
	translation := meanB.Sub(rot.TransformVector(meanA))
	increment := RigidTransform{Rotation: rot, Translation: translation}
	return increment.Compose(accumulated), nil
}
