package geom

import "math"

// Quat is a unit quaternion (w, x, y, z) representing a rotation from the
// body frame to the world frame.
type Quat struct {
	W, X, Y, Z float64
}

// IdentityQuat returns the identity rotation.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// Mul returns the Hamilton product q · r, composing the rotations so that
// r is applied first.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
	}
}

// Normalize returns q scaled to unit length. A degenerate zero quaternion
// normalizes to the identity.
func (q Quat) Normalize() Quat {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return IdentityQuat()
	}
	return Quat{q.W / n, q.X / n, q.Y / n, q.Z / n}
}

// FromRotationVector builds the quaternion for a rotation of |v| radians
// about the axis v. The small-angle branch avoids dividing by a vanishing
// norm.
func FromRotationVector(v Vec3) Quat {
	angle := v.Norm()
	if angle < 1e-12 {
		return Quat{W: 1, X: v.X / 2, Y: v.Y / 2, Z: v.Z / 2}.Normalize()
	}
	s := math.Sin(angle/2) / angle
	return Quat{
		W: math.Cos(angle / 2),
		X: v.X * s,
		Y: v.Y * s,
		Z: v.Z * s,
	}
}

// RotationMatrix returns the 3×3 rotation matrix equivalent to q.
func (q Quat) RotationMatrix() Mat33 {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	return Mat33{
		{w*w + x*x - y*y - z*z, 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), w*w - x*x + y*y - z*z, 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), w*w - x*x - y*y + z*z},
	}
}

// RollPitchYaw returns the Tait-Bryan angles (radians) for q.
func (q Quat) RollPitchYaw() (roll, pitch, yaw float64) {
	w, x, y, z := q.W, q.X, q.Y, q.Z
	roll = math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	} else if sinp < -1 {
		sinp = -1
	}
	pitch = math.Asin(sinp)
	yaw = math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return roll, pitch, yaw
}

// IsFinite reports whether all components are finite.
func (q Quat) IsFinite() bool {
	return isFinite(q.W) && isFinite(q.X) && isFinite(q.Y) && isFinite(q.Z)
}
