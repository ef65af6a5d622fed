package kart

import (
	"github.com/automoto/krazykarts-mp/shared/gamemath"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
)

// Kinematics is the part of a kart's state the physics step reads and writes.
type Kinematics struct {
	Position    mgl64.Vec3 // world units
	Orientation mgl64.Quat
	Velocity    mgl64.Vec3 // m/s
}

// Transform returns the placement part of k.
func (k Kinematics) Transform() Transform {
	return Transform{Position: k.Position, Orientation: k.Orientation}
}

// Sweeper performs a swept move of a kart through static geometry. It
// returns the translation actually travelled and whether a blocking hit cut
// it short. A Sweeper must only depend on its arguments and on static world
// geometry.
type Sweeper interface {
	Sweep(from, delta mgl64.Vec3) (moved mgl64.Vec3, blocked bool)
}

// Environment carries the world inputs of a step. A nil Sweeper means free
// space.
type Environment struct {
	Gravity float64 // m/s², magnitude
	Sweeper Sweeper
}

// Step advances k by one move. Client prediction and the server both call it
// with the same inputs, so it must stay a pure function of its arguments:
// time comes only from m.DeltaTime.
func Step(c Constants, k Kinematics, m Move, env Environment) (Kinematics, bool) {
	dt := float64(m.DeltaTime)
	forward := gamemath.Forward(k.Orientation)

	// --- Forces ---
	force := forward.Mul(c.MaxDrivingForce * float64(m.Throttle))
	force = force.Add(airResistance(c, k.Velocity))
	force = force.Add(rollingResistance(c, k.Velocity, env.Gravity))

	// --- Integrate velocity (F = m a) ---
	accel := force.Mul(1 / c.Mass)
	velocity := k.Velocity.Add(accel.Mul(dt))

	// --- Steering: arc length travelled over the turning circle ---
	arc := forward.Dot(velocity) * dt
	angle := arc / c.MinTurningRadius * float64(m.Steering)
	velocity, orientation := gamemath.RotateAboutUp(velocity, k.Orientation, angle)

	// --- Swept translation ---
	delta := velocity.Mul(dt * netconfig.UnitsPerMeter)
	collided := false
	if env.Sweeper != nil {
		var moved mgl64.Vec3
		moved, collided = env.Sweeper.Sweep(k.Position, delta)
		delta = moved
	}
	if collided {
		velocity = mgl64.Vec3{}
	}

	return Kinematics{
		Position:    k.Position.Add(delta),
		Orientation: orientation,
		Velocity:    velocity,
	}, collided
}

// airResistance = -v̂ |v|² drag
func airResistance(c Constants, v mgl64.Vec3) mgl64.Vec3 {
	return gamemath.SafeNormal(v).Mul(-v.LenSqr() * c.DragCoefficient)
}

// rollingResistance = -v̂ Crr m g
func rollingResistance(c Constants, v mgl64.Vec3, gravity float64) mgl64.Vec3 {
	normalForce := c.Mass * gravity
	return gamemath.SafeNormal(v).Mul(-c.RollingResistanceCoefficient * normalForce)
}
