package systems

import (
	"math/rand/v2"

	"github.com/automoto/krazykarts-mp/components"
	"github.com/automoto/krazykarts-mp/shared/gamemath"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// Autopilot tuning.
const (
	autopilotMinLeg      = 0.6 // seconds per steering leg
	autopilotMaxLeg      = 2.0
	autopilotRamp        = 1.0  // seconds from idle to full throttle
	autopilotStuckSpeed  = 0.25 // m/s
	autopilotStuckAfter  = 0.75 // seconds
	autopilotRecoverTime = 1.2  // seconds reversing
)

// NewAutopilot returns an autopilot in cruise. Equal seeds drive equally.
func NewAutopilot(seed int64) components.AutopilotData {
	ap := components.AutopilotData{
		Rng: rand.New(rand.NewPCG(uint64(seed), 0x6b617274)),
	}
	cruise(&ap)
	return ap
}

// UpdateAutopilot sets the control axes of every autopiloted kart. It must
// run before the role dispatch system.
func UpdateAutopilot(dt func() float64) func(*ecs.ECS) {
	return func(e *ecs.ECS) {
		step := dt()
		if step <= 0 {
			return
		}
		components.Autopilot.Each(e.World, func(entry *donburi.Entry) {
			if !entry.HasComponent(components.Vehicle) {
				return
			}
			ap := components.Autopilot.Get(entry)
			v := components.Vehicle.Get(entry).Actor.Vehicle()

			throttle, steering := StepAutopilot(ap, step, v.Velocity().Len())
			v.SetThrottle(throttle)
			v.SetSteeringThrow(steering)
		})
	}
}

// StepAutopilot advances ap by dt seconds for a kart moving at speed (m/s)
// and returns the axes to drive with.
func StepAutopilot(ap *components.AutopilotData, dt, speed float64) (throttle, steering float32) {
	switch ap.State {
	case components.AutopilotCruise:
		if speed < autopilotStuckSpeed && ap.Throttle > 0.5 {
			ap.StuckTime += dt
		} else {
			ap.StuckTime = 0
		}
		if ap.StuckTime >= autopilotStuckAfter {
			reverseOut(ap)
		}
	case components.AutopilotRecover:
		ap.Remaining -= dt
		if ap.Remaining <= 0 {
			cruise(ap)
		}
	}

	t, _ := ap.Ramp.Update(float32(dt))
	ap.Throttle = gamemath.ClampAxis(t)

	if ap.SteerLeg != nil {
		s, _, done := ap.SteerLeg.Update(float32(dt))
		ap.Steering = gamemath.ClampAxis(s)
		if done {
			ap.SteerLeg = nil
		}
	}
	if ap.SteerLeg == nil && ap.State == components.AutopilotCruise {
		ap.SteerLeg = nextLeg(ap)
	}
	return ap.Throttle, ap.Steering
}

func cruise(ap *components.AutopilotData) {
	ap.State = components.AutopilotCruise
	ap.StuckTime = 0
	ap.Ramp = gween.New(0, 1, autopilotRamp, ease.OutQuad)
	ap.SteerLeg = nextLeg(ap)
}

func reverseOut(ap *components.AutopilotData) {
	ap.State = components.AutopilotRecover
	ap.Remaining = autopilotRecoverTime
	ap.Ramp = gween.New(0, -1, autopilotRamp/4, ease.Linear)

	// Opposite lock turns the nose away from the wall.
	lock := float32(1)
	if ap.Steering > 0 {
		lock = -1
	}
	ap.SteerLeg = gween.NewSequence(gween.New(ap.Steering, lock, autopilotRecoverTime/4, ease.InOutSine))
}

func nextLeg(ap *components.AutopilotData) *gween.Sequence {
	target := float32(ap.Rng.Float64()*2 - 1)
	hold := float32(autopilotMinLeg + ap.Rng.Float64()*(autopilotMaxLeg-autopilotMinLeg))
	return gween.NewSequence(
		gween.New(ap.Steering, target, hold/2, ease.InOutSine),
		gween.New(target, target, hold/2, ease.Linear),
	)
}
