package kart

import (
	"math"
	"testing"

	"github.com/automoto/krazykarts-mp/shared/gamemath"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wallAtX blocks any translation that would cross x = limit.
type wallAtX struct {
	limit float64
}

func (w wallAtX) Sweep(from, delta mgl64.Vec3) (mgl64.Vec3, bool) {
	if from.X()+delta.X() <= w.limit {
		return delta, false
	}
	scale := (w.limit - from.X()) / delta.X()
	return delta.Mul(scale), true
}

func restingKart() Kinematics {
	return Kinematics{Orientation: mgl64.QuatIdent()}
}

func TestStep_FullThrottleFromRest(t *testing.T) {
	c := DefaultConstants()
	m := Move{Throttle: 1, Steering: 0, DeltaTime: 0.1, Timestamp: 0.1}

	next, collided := Step(c, restingKart(), m, Environment{Gravity: netconfig.DefaultGravity})

	require.False(t, collided)
	// a = 10000 N / 1000 kg = 10 m/s², no drag or rolling resistance at rest.
	assert.InDelta(t, 1.0, next.Velocity.X(), 1e-6)
	assert.InDelta(t, 0.0, next.Velocity.Y(), 1e-9)
	assert.InDelta(t, 0.0, next.Velocity.Z(), 1e-9)
	// 1 m/s for 0.1 s is 0.1 m, i.e. 10 world units.
	assert.InDelta(t, 0.1*netconfig.UnitsPerMeter, next.Position.X(), 1e-6)
	assert.True(t, gamemath.SameRotation(next.Orientation, mgl64.QuatIdent(), 1e-12))
}

func TestStep_Deterministic(t *testing.T) {
	c := DefaultConstants()
	k := Kinematics{
		Position:    mgl64.Vec3{120, -40, 0},
		Orientation: gamemath.YawRotation(0.3),
		Velocity:    mgl64.Vec3{7, 2, 0},
	}
	m := Move{Throttle: 0.7, Steering: -0.4, DeltaTime: 1.0 / 60, Timestamp: 3}
	env := Environment{Gravity: netconfig.DefaultGravity}

	a, ac := Step(c, k, m, env)
	b, bc := Step(c, k, m, env)

	assert.Equal(t, a, b)
	assert.Equal(t, ac, bc)
}

func TestStep_ResistanceSlowsCoastingKart(t *testing.T) {
	c := DefaultConstants()
	k := restingKart()
	k.Velocity = mgl64.Vec3{20, 0, 0}

	next, _ := Step(c, k, Move{DeltaTime: 0.1, Timestamp: 1}, Environment{Gravity: netconfig.DefaultGravity})

	// drag = 400*16 = 6400 N, rolling = 0.015*1000*9.81 = 147.15 N
	want := 20 - (6400+147.15)/1000*0.1
	assert.InDelta(t, want, next.Velocity.X(), 1e-6)
}

func TestStep_SteeringTurnsVelocityAndOrientation(t *testing.T) {
	c := DefaultConstants()
	k := restingKart()
	k.Velocity = mgl64.Vec3{10, 0, 0}

	next, _ := Step(c, k, Move{Steering: 1, DeltaTime: 0.1, Timestamp: 1}, Environment{})

	speed := next.Velocity.Len()
	arc := speed * float64(float32(0.1))
	wantAngle := arc / c.MinTurningRadius

	heading := math.Atan2(gamemath.Forward(next.Orientation).Y(), gamemath.Forward(next.Orientation).X())
	assert.InDelta(t, wantAngle, heading, 1e-9)
	assert.InDelta(t, wantAngle, math.Atan2(next.Velocity.Y(), next.Velocity.X()), 1e-9)
	assert.Greater(t, next.Position.Y(), 0.0)
}

func TestStep_BlockingHitStopsKart(t *testing.T) {
	c := DefaultConstants()
	k := restingKart()
	k.Velocity = mgl64.Vec3{30, 0, 0}

	next, collided := Step(c, k, Move{Throttle: 1, DeltaTime: 0.1, Timestamp: 1}, Environment{
		Gravity: netconfig.DefaultGravity,
		Sweeper: wallAtX{limit: 50},
	})

	assert.True(t, collided)
	assert.Equal(t, mgl64.Vec3{}, next.Velocity)
	assert.InDelta(t, 50.0, next.Position.X(), 1e-9)
}

func TestConstants_Validate(t *testing.T) {
	require.NoError(t, DefaultConstants().Validate())

	tests := []struct {
		name   string
		mutate func(*Constants)
	}{
		{"zero mass", func(c *Constants) { c.Mass = 0 }},
		{"zero turning radius", func(c *Constants) { c.MinTurningRadius = 0 }},
		{"negative drag", func(c *Constants) { c.DragCoefficient = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConstants()
			tt.mutate(&c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConstants)
		})
	}
}
