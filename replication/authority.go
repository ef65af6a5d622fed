package replication

import (
	"errors"
	"fmt"
	"math"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidMove      = errors.New("invalid move")
	ErrNonPositiveDelta = errors.New("delta time must be positive")
	ErrNonFinite        = errors.New("move field is not finite")
	ErrAxisOutOfRange   = errors.New("control axis out of range")
	ErrStaleTimestamp   = errors.New("timestamp not after last accepted move")
	ErrClientAhead      = errors.New("client time ahead of server clock")
)

// Clock is the authority's own simulation clock.
type Clock interface {
	Now() float64
}

// Authority is the server side of one kart: the only writer of its
// VehicleState.
type Authority struct {
	vehicle *Vehicle
	clock   Clock

	clientTime    float64 // sum of accepted move durations
	lastTimestamp float32
	accepted      bool
	state         messages.VehicleState

	// OnReject is called for every dropped move. The sender is never told.
	OnReject func(m kart.Move, err error)
	// OnAccept is called after an incoming move has been applied.
	OnAccept func(m kart.Move)
}

// NewAuthority wraps v. The initial published state is v's current transform
// at rest.
func NewAuthority(v *Vehicle, clock Clock) *Authority {
	a := &Authority{vehicle: v, clock: clock}
	if v.pose != nil {
		a.state = messages.NewVehicleState(v.Transform())
	}
	return a
}

// ValidateMove checks m against the control ranges, the kart's move order and
// the authority clock. Errors wrap ErrInvalidMove.
func (a *Authority) ValidateMove(m kart.Move) error {
	switch {
	case !finite(m.DeltaTime) || !finite(m.Timestamp) || !finite(m.Throttle) || !finite(m.Steering):
		return fmt.Errorf("%w: %w (%+v)", ErrInvalidMove, ErrNonFinite, m)
	case !(m.DeltaTime > 0):
		return fmt.Errorf("%w: %w (%v)", ErrInvalidMove, ErrNonPositiveDelta, m.DeltaTime)
	case !m.AxesInRange():
		return fmt.Errorf("%w: %w (throttle %v, steering %v)", ErrInvalidMove, ErrAxisOutOfRange, m.Throttle, m.Steering)
	case a.accepted && m.Timestamp <= a.lastTimestamp:
		return fmt.Errorf("%w: %w (%v <= %v)", ErrInvalidMove, ErrStaleTimestamp, m.Timestamp, a.lastTimestamp)
	}

	// A client cannot have driven for longer than the server has been running
	// its kart.
	proposed := a.clientTime + float64(m.DeltaTime)
	if now := a.clock.Now(); proposed > now {
		return fmt.Errorf("%w: %w (%.4fs > %.4fs)", ErrInvalidMove, ErrClientAhead, proposed, now)
	}
	return nil
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ApplyIncomingMove validates and applies a move received from the kart's
// owner. Rejected moves leave the state untouched.
func (a *Authority) ApplyIncomingMove(m kart.Move) error {
	if err := a.ValidateMove(m); err != nil {
		if a.OnReject != nil {
			a.OnReject(m, err)
		}
		return err
	}

	a.clientTime += float64(m.DeltaTime)
	a.lastTimestamp = m.Timestamp
	a.accepted = true

	a.vehicle.SimulateMove(m)
	a.publish(m)
	if a.OnAccept != nil {
		a.OnAccept(m)
	}
	return nil
}

// ApplyLocalMove simulates a move produced on the server itself and
// publishes the result.
func (a *Authority) ApplyLocalMove(m kart.Move) {
	a.vehicle.SimulateMove(m)
	a.publish(m)
}

// Teleport overwrites the authoritative transform, for spawns and resets.
func (a *Authority) Teleport(t kart.Transform) {
	a.vehicle.Snap(t, mgl64.Vec3{})
	a.state.Transform = t
	a.state.Velocity = mgl64.Vec3{}
}

// State returns the published authoritative snapshot.
func (a *Authority) State() messages.VehicleState {
	return a.state
}

// ClientTime returns the accumulated duration of accepted moves.
func (a *Authority) ClientTime() float64 {
	return a.clientTime
}

func (a *Authority) publish(m kart.Move) {
	a.state = messages.VehicleState{
		LastMove:  m,
		Transform: a.vehicle.Transform(),
		Velocity:  a.vehicle.Velocity(),
	}
}
