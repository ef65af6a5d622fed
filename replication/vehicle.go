// Package replication drives one replicated kart in whichever role the local
// process plays for it: the server applying moves, the owning client
// predicting and reconciling, or an observer interpolating.
package replication

import (
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/go-gl/mathgl/mgl64"
)

// PoseProvider is the object a Vehicle moves: it reads and writes the
// object's world transform and sweeps it through the world. The core never
// owns the object behind it.
type PoseProvider interface {
	Transform() kart.Transform
	SetTransform(kart.Transform)
	kart.Sweeper
}

// Vehicle is the movement state of one kart plus the collaborators the
// physics step needs. Only the owning actor's tick may touch it.
type Vehicle struct {
	ID        uint32
	Constants kart.Constants
	Gravity   float64

	pose     PoseProvider
	velocity mgl64.Vec3
	throttle float32
	steering float32
	lastMove kart.Move
}

// NewVehicle creates a kart at rest. pose may be nil, in which case the actor
// built on top of it is disabled.
func NewVehicle(id uint32, c kart.Constants, gravity float64, pose PoseProvider) *Vehicle {
	return &Vehicle{
		ID:        id,
		Constants: c,
		Gravity:   gravity,
		pose:      pose,
	}
}

// SimulateMove runs the physics step for m from the current state and stores
// the result.
func (v *Vehicle) SimulateMove(m kart.Move) bool {
	t := v.pose.Transform()
	next, collided := kart.Step(v.Constants, kart.Kinematics{
		Position:    t.Position,
		Orientation: t.Orientation,
		Velocity:    v.velocity,
	}, m, kart.Environment{Gravity: v.Gravity, Sweeper: v.pose})

	v.pose.SetTransform(next.Transform())
	v.velocity = next.Velocity
	v.lastMove = m
	return collided
}

// Snap overwrites transform and velocity with an authoritative value.
func (v *Vehicle) Snap(t kart.Transform, velocity mgl64.Vec3) {
	v.pose.SetTransform(t)
	v.velocity = velocity
}

func (v *Vehicle) Transform() kart.Transform { return v.pose.Transform() }

func (v *Vehicle) Velocity() mgl64.Vec3 { return v.velocity }

func (v *Vehicle) SetVelocity(vel mgl64.Vec3) { v.velocity = vel }

func (v *Vehicle) SetThrottle(value float32) { v.throttle = value }

func (v *Vehicle) SetSteeringThrow(value float32) { v.steering = value }

// Axes returns the current control input.
func (v *Vehicle) Axes() (throttle, steering float32) { return v.throttle, v.steering }

func (v *Vehicle) LastMove() kart.Move { return v.lastMove }

// Pose returns the collaborator the vehicle moves.
func (v *Vehicle) Pose() PoseProvider { return v.pose }

// FreeBody is a PoseProvider in empty space: sweeps never collide.
type FreeBody struct {
	T kart.Transform
}

// NewFreeBody returns a FreeBody placed at t.
func NewFreeBody(t kart.Transform) *FreeBody {
	return &FreeBody{T: t}
}

func (b *FreeBody) Transform() kart.Transform { return b.T }

func (b *FreeBody) SetTransform(t kart.Transform) { b.T = t }

func (b *FreeBody) Sweep(_, delta mgl64.Vec3) (mgl64.Vec3, bool) { return delta, false }
