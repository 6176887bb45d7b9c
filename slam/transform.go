package slam

// RigidTransform is a rotation followed by a translation:
// p' = R*p + t. It is the result type of registration and the isometry part
// of the mapper's pose.
type RigidTransform struct {
	Rotation    Rotation
	Translation Point
}

// IdentityTransform returns the neutral transform for the given dimension.
func IdentityTransform(dim int) (RigidTransform, error) {
	rot, err := IdentityRotation(dim)
	if err != nil {
		return RigidTransform{}, err
	}
	return RigidTransform{Rotation: rot, Translation: make(Point, dim)}, nil
}

// Dim reports the dimensionality of the transform.
func (t RigidTransform) Dim() int { return len(t.Translation) }

// TransformPoint applies the transform to a point: R*p + t.
func (t RigidTransform) TransformPoint(p Point) Point {
	return t.Rotation.TransformVector(p).Add(t.Translation)
}

// TransformVector applies only the rotation component, for direction
// vectors that must not pick up the translation.
func (t RigidTransform) TransformVector(v Point) Point {
	return t.Rotation.TransformVector(v)
}

// Compose returns the transform equivalent to applying other first and then
// t. Registration pre-multiplies each incremental estimate onto the
// accumulated transform with exactly this call.
func (t RigidTransform) Compose(other RigidTransform) RigidTransform {
	return RigidTransform{
		Rotation:    t.Rotation.Compose(other.Rotation),
		Translation: t.Rotation.TransformVector(other.Translation).Add(t.Translation),
	}
}

// Inverse returns the transform that undoes t.
func (t RigidTransform) Inverse() RigidTransform {
	var inv Rotation
	switch r := t.Rotation.(type) {
	case rotation2:
		inv = NewRotation2(-r.Angle())
	case rotation3:
		inv = rotation3{q: quat3Conj(r)}
	}
	return RigidTransform{
		Rotation:    inv,
		Translation: inv.TransformVector(t.Translation).Scale(-1),
	}
}

// Pose is a similarity transform: a rigid transform with a fixed uniform
// scale. The mapper uses scale = grid resolution to map world coordinates
// into grid-cell space: p' = s*R*p + t.
type Pose struct {
	Rotation    Rotation
	Translation Point
	Scale       float64
}

// NewPose returns an identity pose with the given scale.
func NewPose(dim int, scale float64) (Pose, error) {
	rot, err := IdentityRotation(dim)
	if err != nil {
		return Pose{}, err
	}
	return Pose{Rotation: rot, Translation: make(Point, dim), Scale: scale}, nil
}

// TransformPoint applies the similarity to a point.
func (p Pose) TransformPoint(pt Point) Point {
	return p.Rotation.TransformVector(pt).Scale(p.Scale).Add(p.Translation)
}

// Isometry returns the rigid part of the pose, dropping the scale.
func (p Pose) Isometry() RigidTransform {
	return RigidTransform{Rotation: p.Rotation, Translation: p.Translation.Clone()}
}

// AppendTranslation shifts the pose by v in world coordinates.
func (p *Pose) AppendTranslation(v Point) {
	p.Translation = p.Translation.Add(v)
}

// AppendRotationWrtCenter applies r about the pose's own center: the
// translation point stays fixed and only the orientation changes.
func (p *Pose) AppendRotationWrtCenter(r Rotation) {
	p.Rotation = r.Compose(p.Rotation)
}
