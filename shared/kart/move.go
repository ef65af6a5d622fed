package kart

import "github.com/automoto/krazykarts-mp/shared/gamemath"

// Move is one tick of control input. It is sent from client to server every
// tick, is immutable once created and is ordered by Timestamp, which is
// strictly increasing per kart.
type Move struct {
	Throttle  float32 // [-1, 1]
	Steering  float32 // [-1, 1]
	DeltaTime float32 // seconds, > 0
	Timestamp float32 // sender's simulation clock, seconds
}

// AxesInRange reports whether both control axes are inside [-1, 1].
func (m Move) AxesInRange() bool {
	return m.Throttle >= -1 && m.Throttle <= 1 && m.Steering >= -1 && m.Steering <= 1
}

// NewMove builds a Move from the sampled control axes. The axes are clamped;
// that is the only check the sender performs.
func NewMove(throttle, steering, deltaTime, now float32) Move {
	return Move{
		Throttle:  gamemath.ClampAxis(throttle),
		Steering:  gamemath.ClampAxis(steering),
		DeltaTime: deltaTime,
		Timestamp: now,
	}
}

// SimClock is a continuously advancing simulation clock in seconds. It only
// moves when advanced, which keeps every consumer deterministic.
type SimClock struct {
	now float64
}

// Advance moves the clock forward by dt seconds. Non-positive steps are ignored.
func (c *SimClock) Advance(dt float64) {
	if dt > 0 {
		c.now += dt
	}
}

// Now returns the current simulation time.
func (c *SimClock) Now() float64 {
	return c.now
}

// MaxSessionTime is how long a MoveFactory clock can run before float32
// timestamps of 60 Hz moves stop being distinct (2^17 s, about 36 hours).
// Clients get a fresh factory on every join.
const MaxSessionTime = 1 << 17

// MoveFactory samples control input into Moves stamped with its own clock.
type MoveFactory struct {
	Clock SimClock
}

// Create advances the factory clock by deltaTime and returns the move for
// this tick.
func (f *MoveFactory) Create(throttle, steering float32, deltaTime float64) Move {
	f.Clock.Advance(deltaTime)
	return NewMove(throttle, steering, float32(deltaTime), float32(f.Clock.Now()))
}
