package components

import (
	"math/rand/v2"

	"github.com/tanema/gween"
	"github.com/yohamta/donburi"
)

type AutopilotState int

const (
	AutopilotCruise AutopilotState = iota
	AutopilotRecover
)

func (s AutopilotState) String() string {
	if s == AutopilotRecover {
		return "recover"
	}
	return "cruise"
}

// AutopilotData drives a kart without a human: steering eases between random
// targets and a stuck kart backs off a wall before cruising again.
type AutopilotData struct {
	State AutopilotState
	Rng   *rand.Rand

	SteerLeg  *gween.Sequence // nil once the leg has finished
	Ramp      *gween.Tween    // throttle ramp for the current state
	Throttle  float32         // last outputs
	Steering  float32
	StuckTime float64 // seconds at throttle without moving
	Remaining float64 // seconds left reversing
}

var Autopilot = donburi.NewComponentType[AutopilotData]()
