package replication

import (
	"github.com/automoto/krazykarts-mp/shared/gamemath"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
)

// Phase is the interpolator's state.
type Phase int

const (
	// PhaseIdle: fewer than two snapshots received.
	PhaseIdle Phase = iota
	// PhaseExtrapolating: a start/target pair exists and is being sampled.
	PhaseExtrapolating
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseExtrapolating:
		return "extrapolating"
	}
	return "unknown"
}

// Pose is the rendered placement and velocity of an observed kart.
type Pose struct {
	Transform kart.Transform
	Velocity  mgl64.Vec3 // m/s
}

// PoseOf returns the pose carried by an authoritative state.
func PoseOf(s messages.VehicleState) Pose {
	return Pose{Transform: s.Transform, Velocity: s.Velocity}
}

// Interpolator dead-reckons an observed kart between authoritative states.
type Interpolator struct {
	phase    Phase
	received int

	start  Pose
	target Pose

	interval    float64 // seconds between the last two arrivals
	sinceUpdate float64 // seconds since the last arrival

	last Pose
}

// NewInterpolator returns an idle interpolator.
func NewInterpolator() *Interpolator {
	return &Interpolator{}
}

// OnState records a newly arrived state. rendered is the pose currently on
// screen; it becomes the start of the next curve so corrections never pop.
func (ip *Interpolator) OnState(s messages.VehicleState, rendered Pose) {
	ip.received++
	ip.start = rendered
	ip.target = PoseOf(s)
	ip.interval = ip.sinceUpdate
	ip.sinceUpdate = 0

	if ip.received < 2 {
		ip.last = ip.target
		return
	}
	ip.phase = PhaseExtrapolating
	ip.last = rendered
}

// Advance moves the interpolation clock by dt seconds and samples.
func (ip *Interpolator) Advance(dt float64) (Pose, bool) {
	ip.sinceUpdate += dt
	return ip.Sample(ip.sinceUpdate)
}

// Sample returns the estimated pose elapsed seconds after the last arrival.
// It reports false and holds the last sample while idle or when the two most
// recent states arrived less than IntervalEpsilon apart.
func (ip *Interpolator) Sample(elapsed float64) (Pose, bool) {
	if ip.phase != PhaseExtrapolating || ip.interval < netconfig.IntervalEpsilon {
		return ip.last, false
	}

	alpha := elapsed / ip.interval
	scale := ip.interval * netconfig.UnitsPerMeter

	p0, t0 := ip.start.Transform.Position, ip.start.Velocity.Mul(scale)
	p1, t1 := ip.target.Transform.Position, ip.target.Velocity.Mul(scale)

	ip.last = Pose{
		Transform: kart.Transform{
			Position:    gamemath.CubicInterp(p0, t0, p1, t1, alpha),
			Orientation: gamemath.Slerp(ip.start.Transform.Orientation, ip.target.Transform.Orientation, alpha),
		},
		Velocity: gamemath.CubicInterpDerivative(p0, t0, p1, t1, alpha).Mul(1 / scale),
	}
	return ip.last, true
}

// Phase returns the current state.
func (ip *Interpolator) Phase() Phase { return ip.phase }

// Interval returns the time between the two most recent arrivals.
func (ip *Interpolator) Interval() float64 { return ip.interval }

// SinceUpdate returns the time since the last arrival.
func (ip *Interpolator) SinceUpdate() float64 { return ip.sinceUpdate }
