package replication

import (
	"github.com/automoto/krazykarts-mp/network"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/rs/zerolog"
)

// MoveSender delivers moves to the server. Sending is fire-and-forget.
type MoveSender interface {
	SubmitMove(m kart.Move) error
}

// ReconcileResult describes one snap-and-replay.
type ReconcileResult struct {
	Trimmed    int     // moves acknowledged by this state
	Replayed   int     // moves simulated again on top of it
	Correction float64 // distance between the prediction and the replayed position, world units
}

// Predictor is the owning client's side of a kart: it simulates its own
// moves immediately and reconciles with the server's state.
type Predictor struct {
	vehicle *Vehicle
	queue   *network.PredictionQueue
	factory kart.MoveFactory
	sender  MoveSender
	log     zerolog.Logger
}

// NewPredictor creates a predictor for v. queueCapacity bounds the number of
// unacknowledged moves kept for replay.
func NewPredictor(v *Vehicle, sender MoveSender, queueCapacity int, log zerolog.Logger) *Predictor {
	return &Predictor{
		vehicle: v,
		queue:   network.NewPredictionQueue(queueCapacity),
		sender:  sender,
		log:     log,
	}
}

// Tick samples the current input into a move, predicts it locally and sends
// it to the server.
func (p *Predictor) Tick(dt float64) kart.Move {
	throttle, steering := p.vehicle.Axes()
	m := p.factory.Create(throttle, steering, dt)

	p.vehicle.SimulateMove(m)
	p.queue.Push(m)

	if err := p.sender.SubmitMove(m); err != nil {
		// The queued copy is replayed until a later state acknowledges past it.
		p.log.Debug().Err(err).Float32("ts", m.Timestamp).Msg("submit move failed")
	}
	return m
}

// OnAuthoritativeState snaps to the server's state, drops the moves it has
// acknowledged and replays the rest in order.
func (p *Predictor) OnAuthoritativeState(s messages.VehicleState) ReconcileResult {
	predicted := p.vehicle.Transform().Position

	p.vehicle.Snap(s.Transform, s.Velocity)
	res := ReconcileResult{Trimmed: p.queue.TrimAcknowledged(s.LastMove.Timestamp)}

	for m := range p.queue.All() {
		p.vehicle.SimulateMove(m)
		res.Replayed++
	}

	res.Correction = p.vehicle.Transform().Position.Sub(predicted).Len()
	return res
}

// Queue exposes the unacknowledged moves.
func (p *Predictor) Queue() *network.PredictionQueue {
	return p.queue
}

// Clock returns the predictor's simulation clock.
func (p *Predictor) Clock() *kart.SimClock {
	return &p.factory.Clock
}
