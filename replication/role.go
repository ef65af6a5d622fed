package replication

import (
	"errors"
	"fmt"

	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/network"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/rs/zerolog"
)

// ErrMissingDependency marks an actor that was built without a collaborator
// its role needs. Such actors are disabled, never ticked.
var ErrMissingDependency = errors.New("missing dependency")

// Role is what the local process does for one kart.
type Role int

const (
	// RoleAuthoritySelf: the server drives this kart itself.
	RoleAuthoritySelf Role = iota
	// RoleAuthorityRemote: the server applies moves sent by the owning client.
	RoleAuthorityRemote
	// RoleAutonomousProxy: the owning client predicts and reconciles.
	RoleAutonomousProxy
	// RoleSimulatedProxy: any other client, dead-reckoning from states.
	RoleSimulatedProxy
)

func (r Role) String() string {
	switch r {
	case RoleAuthoritySelf:
		return "authority-self"
	case RoleAuthorityRemote:
		return "authority-remote"
	case RoleAutonomousProxy:
		return "autonomous-proxy"
	case RoleSimulatedProxy:
		return "simulated-proxy"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ResolveRole maps the two flags a process knows about a kart to its role.
func ResolveRole(isAuthority, isLocallyControlled bool) Role {
	switch {
	case isAuthority && isLocallyControlled:
		return RoleAuthoritySelf
	case isAuthority:
		return RoleAuthorityRemote
	case isLocallyControlled:
		return RoleAutonomousProxy
	default:
		return RoleSimulatedProxy
	}
}

// ActorOptions are the collaborators an Actor may need, depending on role.
type ActorOptions struct {
	// Sender is required for RoleAutonomousProxy.
	Sender MoveSender
	// QueueCapacity bounds the prediction queue; <= 0 is unbounded.
	QueueCapacity int
}

// Actor binds a Vehicle to the engine its role needs. Network callbacks hand
// it moves and states through DeliverMove and DeliverState; everything else
// happens inside Dispatcher.Tick.
type Actor struct {
	vehicle *Vehicle
	role    Role
	err     error

	clock     kart.SimClock // server time spent on this kart, authority roles
	factory   kart.MoveFactory
	authority *Authority
	predictor *Predictor
	interp    *Interpolator

	moves  network.Mailbox[kart.Move]
	states network.Mailbox[messages.VehicleState]

	// OnReconcile, if set, observes every reconciliation of a predicting actor.
	OnReconcile func(ReconcileResult)
}

// NewActor creates the actor for v in role r. An actor missing a collaborator
// is returned disabled, with the reason logged.
func NewActor(v *Vehicle, r Role, opts ActorOptions) *Actor {
	a := &Actor{vehicle: v, role: r}

	switch {
	case v == nil:
		a.err = fmt.Errorf("%w: vehicle", ErrMissingDependency)
	case v.pose == nil:
		a.err = fmt.Errorf("%w: pose provider for kart %d", ErrMissingDependency, v.ID)
	case r == RoleAutonomousProxy && opts.Sender == nil:
		a.err = fmt.Errorf("%w: move sender for kart %d", ErrMissingDependency, v.ID)
	}
	if a.err != nil {
		log := logging.For("replication")
		log.Error().Err(a.err).Stringer("role", r).Msg("actor disabled")
		return a
	}

	switch r {
	case RoleAuthoritySelf, RoleAuthorityRemote:
		a.authority = NewAuthority(v, &a.clock)
	case RoleAutonomousProxy:
		a.predictor = NewPredictor(v, opts.Sender, opts.QueueCapacity, logging.For("prediction"))
	case RoleSimulatedProxy:
		a.interp = NewInterpolator()
	}
	return a
}

// DeliverMove queues a move received from the kart's owner. Safe to call from
// network goroutines.
func (a *Actor) DeliverMove(m kart.Move) {
	_ = a.moves.Post(m)
}

// DeliverState queues an authoritative state. Safe to call from network
// goroutines.
func (a *Actor) DeliverState(s messages.VehicleState) {
	_ = a.states.Post(s)
}

// Enabled reports whether the actor has everything its role needs.
func (a *Actor) Enabled() bool { return a.err == nil }

// Err returns why the actor is disabled, or nil.
func (a *Actor) Err() error { return a.err }

func (a *Actor) Role() Role { return a.role }

func (a *Actor) Vehicle() *Vehicle { return a.vehicle }

// Authority returns the server engine; nil unless the role is an authority.
func (a *Actor) Authority() *Authority { return a.authority }

// Predictor returns the prediction engine; nil unless autonomous proxy.
func (a *Actor) Predictor() *Predictor { return a.predictor }

// Interpolator returns the dead-reckoning engine; nil unless simulated proxy.
func (a *Actor) Interpolator() *Interpolator { return a.interp }

// roleStrategy is one arm of the dispatch: what to do with the inbox and
// what to simulate for the tick.
type roleStrategy interface {
	receive(a *Actor, moves []kart.Move, states []messages.VehicleState)
	step(a *Actor, dt float64)
}

var strategies = map[Role]roleStrategy{
	RoleAuthoritySelf:   authoritySelf{},
	RoleAuthorityRemote: authorityRemote{},
	RoleAutonomousProxy: autonomousProxy{},
	RoleSimulatedProxy:  simulatedProxy{},
}

// Dispatcher ticks actors with the strategy of their role.
type Dispatcher struct {
	log zerolog.Logger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{log: logging.For("dispatch")}
}

// Tick processes everything delivered to a since the last tick, then runs one
// simulation step of dt seconds. Disabled actors are skipped.
func (d *Dispatcher) Tick(a *Actor, dt float64) {
	if a == nil || !a.Enabled() {
		return
	}
	s, ok := strategies[a.role]
	if !ok {
		d.log.Warn().Stringer("role", a.role).Uint32("kart", a.vehicle.ID).Msg("no strategy for role")
		return
	}

	s.receive(a, a.moves.Drain(), a.states.Drain())
	if dt > 0 {
		s.step(a, dt)
	}
}

type authoritySelf struct{}

func (authoritySelf) receive(*Actor, []kart.Move, []messages.VehicleState) {}

func (authoritySelf) step(a *Actor, dt float64) {
	a.clock.Advance(dt)
	throttle, steering := a.vehicle.Axes()
	a.authority.ApplyLocalMove(a.factory.Create(throttle, steering, dt))
}

type authorityRemote struct{}

func (authorityRemote) receive(a *Actor, moves []kart.Move, _ []messages.VehicleState) {
	for _, m := range moves {
		_ = a.authority.ApplyIncomingMove(m) // rejects go to OnReject
	}
}

func (authorityRemote) step(a *Actor, dt float64) {
	// The kart only moves when its owner's moves arrive; the clock bounds how
	// much time those moves may cover.
	a.clock.Advance(dt)
}

type autonomousProxy struct{}

func (autonomousProxy) receive(a *Actor, _ []kart.Move, states []messages.VehicleState) {
	if len(states) == 0 {
		return
	}
	res := a.predictor.OnAuthoritativeState(states[len(states)-1])
	if a.OnReconcile != nil {
		a.OnReconcile(res)
	}
}

func (autonomousProxy) step(a *Actor, dt float64) {
	a.predictor.Tick(dt)
}

type simulatedProxy struct{}

func (simulatedProxy) receive(a *Actor, _ []kart.Move, states []messages.VehicleState) {
	if len(states) == 0 {
		return
	}
	s := states[len(states)-1]
	a.interp.OnState(s, Pose{Transform: a.vehicle.Transform(), Velocity: a.vehicle.Velocity()})
	if a.interp.Phase() == PhaseIdle {
		a.vehicle.Snap(s.Transform, s.Velocity)
	}
}

func (simulatedProxy) step(a *Actor, dt float64) {
	if pose, ok := a.interp.Advance(dt); ok {
		a.vehicle.Snap(pose.Transform, pose.Velocity)
	}
}
