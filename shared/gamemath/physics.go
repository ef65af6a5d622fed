package gamemath

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Clamp clamps a value to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// ClampAxis clamps a control axis to [-1, 1].
func ClampAxis(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// SafeNormal returns v normalized, or the zero vector when v is (nearly) zero.
func SafeNormal(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-8 {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}

// NearlyEqual reports whether two vectors are within tol on every axis.
func NearlyEqual(a, b mgl64.Vec3, tol float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
