package core

import (
	"context"
	"errors"

	"github.com/automoto/krazykarts-mp/replication"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/automoto/krazykarts-mp/server/core"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics are the server's otel instruments. They report to the global
// meter provider, a no-op unless the process installs one.
type Metrics struct {
	accepted    metric.Int64Counter
	rejected    metric.Int64Counter
	rateLimited metric.Int64Counter
	published   metric.Int64Counter
	players     metric.Int64UpDownCounter
}

func NewMetrics() (*Metrics, error) {
	m := meter()
	var err error
	mt := &Metrics{}

	mt.accepted, err = m.Int64Counter("karts.moves.accepted",
		metric.WithDescription("Moves applied by the authority"))
	if err != nil {
		return nil, err
	}
	mt.rejected, err = m.Int64Counter("karts.moves.rejected",
		metric.WithDescription("Moves dropped by validation"))
	if err != nil {
		return nil, err
	}
	mt.rateLimited, err = m.Int64Counter("karts.moves.ratelimited",
		metric.WithDescription("Moves dropped by the per-peer rate limit"))
	if err != nil {
		return nil, err
	}
	mt.published, err = m.Int64Counter("karts.states.published",
		metric.WithDescription("Authoritative states published"))
	if err != nil {
		return nil, err
	}
	mt.players, err = m.Int64UpDownCounter("karts.players",
		metric.WithDescription("Connected drivers"))
	if err != nil {
		return nil, err
	}
	return mt, nil
}

func (m *Metrics) MoveAccepted() {
	m.accepted.Add(context.Background(), 1)
}

func (m *Metrics) MoveRejected(err error) {
	m.rejected.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("reason", rejectReason(err))))
}

func (m *Metrics) MoveRateLimited() {
	m.rateLimited.Add(context.Background(), 1)
}

func (m *Metrics) StatesPublished(n int) {
	m.published.Add(context.Background(), int64(n))
}

func (m *Metrics) PlayerJoined() {
	m.players.Add(context.Background(), 1)
}

func (m *Metrics) PlayerLeft() {
	m.players.Add(context.Background(), -1)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, replication.ErrNonFinite):
		return "nonfinite"
	case errors.Is(err, replication.ErrNonPositiveDelta):
		return "delta"
	case errors.Is(err, replication.ErrAxisOutOfRange):
		return "axis"
	case errors.Is(err, replication.ErrStaleTimestamp):
		return "stale"
	case errors.Is(err, replication.ErrClientAhead):
		return "ahead"
	}
	return "other"
}
