package gamemath

import "github.com/go-gl/mathgl/mgl64"

var (
	// Up is the world up axis.
	Up = mgl64.Vec3{0, 0, 1}
	// Ahead is the local forward axis of a kart.
	Ahead = mgl64.Vec3{1, 0, 0}
)

// Forward returns the world-space forward vector of orientation q.
func Forward(q mgl64.Quat) mgl64.Vec3 {
	return q.Rotate(Ahead)
}

// YawRotation returns a rotation of angle radians about the up axis.
func YawRotation(angle float64) mgl64.Quat {
	return mgl64.QuatRotate(angle, Up)
}

// RotateAboutUp rotates both a vector and an orientation by angle radians
// about the world up axis.
func RotateAboutUp(v mgl64.Vec3, q mgl64.Quat, angle float64) (mgl64.Vec3, mgl64.Quat) {
	if angle == 0 {
		return v, q
	}
	delta := YawRotation(angle)
	return delta.Rotate(v), delta.Mul(q).Normalize()
}

// Slerp interpolates along the shortest arc between a and b. amount is not
// clamped, so values past 1 keep rotating in the same direction.
func Slerp(a, b mgl64.Quat, amount float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, amount)
}

// SameRotation reports whether a and b describe the same rotation within tol.
func SameRotation(a, b mgl64.Quat, tol float64) bool {
	d := a.Normalize().Dot(b.Normalize())
	if d < 0 {
		d = -d
	}
	return 1-d <= tol
}
