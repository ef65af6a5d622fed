package gamemath

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestCubicInterp_Endpoints(t *testing.T) {
	p0 := mgl64.Vec3{0, 0, 0}
	t0 := mgl64.Vec3{100, 0, 0}
	p1 := mgl64.Vec3{200, 50, 0}
	t1 := mgl64.Vec3{100, 20, 0}

	assert.True(t, NearlyEqual(CubicInterp(p0, t0, p1, t1, 0), p0, 1e-9))
	assert.True(t, NearlyEqual(CubicInterp(p0, t0, p1, t1, 1), p1, 1e-9))
	assert.True(t, NearlyEqual(CubicInterpDerivative(p0, t0, p1, t1, 0), t0, 1e-9))
	assert.True(t, NearlyEqual(CubicInterpDerivative(p0, t0, p1, t1, 1), t1, 1e-9))
}

func TestCubicInterp_StraightLineIsLinear(t *testing.T) {
	// Constant velocity: tangents equal the chord, so the curve is a line.
	p0 := mgl64.Vec3{0, 0, 0}
	p1 := mgl64.Vec3{10, 0, 0}
	chord := p1.Sub(p0)

	mid := CubicInterp(p0, chord, p1, chord, 0.5)
	assert.InDelta(t, 5.0, mid.X(), 1e-9)

	past := CubicInterp(p0, chord, p1, chord, 1.5)
	assert.InDelta(t, 15.0, past.X(), 1e-9)
}

func TestSlerp(t *testing.T) {
	a := mgl64.QuatIdent()
	b := YawRotation(math.Pi / 2)

	assert.True(t, SameRotation(Slerp(a, b, 0), a, 1e-9))
	assert.True(t, SameRotation(Slerp(a, b, 1), b, 1e-9))
	assert.True(t, SameRotation(Slerp(a, b, 0.5), YawRotation(math.Pi/4), 1e-9))

	// Past the target the rotation keeps going.
	assert.True(t, SameRotation(Slerp(a, b, 1.5), YawRotation(3*math.Pi/4), 1e-6))
}

func TestSlerp_ShortestPath(t *testing.T) {
	a := mgl64.QuatIdent()
	b := YawRotation(math.Pi / 2).Scale(-1) // same rotation, opposite hemisphere

	mid := Slerp(a, b, 0.5)
	assert.True(t, SameRotation(mid, YawRotation(math.Pi/4), 1e-9))
}

func TestRotateAboutUp(t *testing.T) {
	v, q := RotateAboutUp(mgl64.Vec3{1, 0, 0}, mgl64.QuatIdent(), math.Pi/2)

	assert.True(t, NearlyEqual(v, mgl64.Vec3{0, 1, 0}, 1e-9))
	assert.True(t, NearlyEqual(Forward(q), mgl64.Vec3{0, 1, 0}, 1e-9))
}

func TestSafeNormal(t *testing.T) {
	assert.Equal(t, mgl64.Vec3{}, SafeNormal(mgl64.Vec3{}))
	assert.True(t, NearlyEqual(SafeNormal(mgl64.Vec3{3, 4, 0}), mgl64.Vec3{0.6, 0.8, 0}, 1e-12))
}

func TestClampAxis(t *testing.T) {
	assert.Equal(t, float32(1), ClampAxis(2))
	assert.Equal(t, float32(-1), ClampAxis(-7))
	assert.Equal(t, float32(0.25), ClampAxis(0.25))
}
