package gamemath

import "github.com/go-gl/mathgl/mgl64"

// CubicInterp evaluates the cubic Hermite curve through p0 (tangent t0) and
// p1 (tangent t1) at alpha. alpha is not clamped.
func CubicInterp(p0, t0, p1, t1 mgl64.Vec3, alpha float64) mgl64.Vec3 {
	a2 := alpha * alpha
	a3 := a2 * alpha

	h00 := 2*a3 - 3*a2 + 1
	h10 := a3 - 2*a2 + alpha
	h01 := -2*a3 + 3*a2
	h11 := a3 - a2

	return p0.Mul(h00).Add(t0.Mul(h10)).Add(p1.Mul(h01)).Add(t1.Mul(h11))
}

// CubicInterpDerivative evaluates d/dalpha of CubicInterp at alpha.
func CubicInterpDerivative(p0, t0, p1, t1 mgl64.Vec3, alpha float64) mgl64.Vec3 {
	a2 := alpha * alpha

	d00 := 6*a2 - 6*alpha
	d10 := 3*a2 - 4*alpha + 1
	d01 := -6*a2 + 6*alpha
	d11 := 3*a2 - 2*alpha

	return p0.Mul(d00).Add(t0.Mul(d10)).Add(p1.Mul(d01)).Add(t1.Mul(d11))
}
