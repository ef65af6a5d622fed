package bot

import (
	"context"
	"testing"

	"github.com/automoto/krazykarts-mp/network"
	"github.com/automoto/krazykarts-mp/replication"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopConn is a Conn over an in-process loopback.
type loopConn struct {
	lb     *network.Loopback
	sender *network.LoopbackSender
}

func newLoopConn(id uint32) *loopConn {
	lb := network.NewLoopback()
	return &loopConn{lb: lb, sender: lb.Sender(id)}
}

func (c *loopConn) WaitJoined(context.Context) (messages.JoinAccepted, error) {
	return messages.JoinAccepted{}, nil
}

func (c *loopConn) SubmitMove(m kart.Move) error { return c.sender.SubmitMove(m) }

func (c *loopConn) DrainStates() []messages.StateUpdate { return c.lb.States.Drain() }

func (c *loopConn) Close() error {
	c.lb.Close()
	return nil
}

func joinedAs(id uint32) messages.JoinAccepted {
	return messages.JoinAccepted{
		VehicleID: id,
		TickRate:  30,
		Gravity:   netconfig.DefaultGravity,
		Constants: kart.DefaultConstants(),
		Spawn:     kart.IdentityTransform(),
	}
}

func TestDriver_PredictsAndSendsMoves(t *testing.T) {
	conn := newLoopConn(1)
	d := NewDriver(conn, joinedAs(1), nil, 1)

	for i := 0; i < 30; i++ {
		d.Tick(1.0 / 30)
	}

	moves := conn.lb.Moves.Drain()
	require.Len(t, moves, 30)
	for i := 1; i < len(moves); i++ {
		assert.Greater(t, moves[i].Move.Timestamp, moves[i-1].Move.Timestamp)
		assert.Equal(t, uint32(1), moves[i].VehicleID)
	}
	assert.Equal(t, 30, d.Own().Predictor().Queue().Len())
	assert.Greater(t, d.Own().Vehicle().Velocity().Len(), 0.0)
}

func TestDriver_SkipsDuplicateStates(t *testing.T) {
	conn := newLoopConn(1)
	d := NewDriver(conn, joinedAs(1), nil, 1)

	s := messages.NewVehicleState(kart.IdentityTransform())
	require.NoError(t, conn.lb.States.Post(messages.StateUpdate{VehicleID: 2, State: s}))
	require.NoError(t, conn.lb.States.Post(messages.StateUpdate{VehicleID: 2, State: s}))
	d.Tick(1.0 / 30)

	st := d.Stats()
	assert.Equal(t, 1, st.StatesApplied)
	assert.Equal(t, 1, st.DuplicatesSkipped)
	assert.Equal(t, 1, st.Proxies)
}

func TestDriver_RemoteKartsFollowStates(t *testing.T) {
	conn := newLoopConn(1)
	d := NewDriver(conn, joinedAs(1), nil, 1)

	at := func(x float64) messages.StateUpdate {
		tr := kart.IdentityTransform()
		tr.Position = mgl64.Vec3{x, 0, 0}
		return messages.StateUpdate{VehicleID: 2, State: messages.VehicleState{Transform: tr, Velocity: mgl64.Vec3{1, 0, 0}}}
	}

	require.NoError(t, conn.lb.States.Post(at(0)))
	d.Tick(0.5)
	remote, ok := d.Remote(2)
	require.True(t, ok)
	assert.Equal(t, replication.RoleSimulatedProxy, remote.Role())

	require.NoError(t, conn.lb.States.Post(at(100)))
	d.Tick(0.5)
	x := remote.Vehicle().Transform().Position.X()
	assert.Greater(t, x, 0.0)
	assert.Less(t, x, 150.0)
}

func TestDriver_DropsSilentRemotes(t *testing.T) {
	conn := newLoopConn(1)
	d := NewDriver(conn, joinedAs(1), nil, 1)

	require.NoError(t, conn.lb.States.Post(messages.StateUpdate{VehicleID: 2, State: messages.NewVehicleState(kart.IdentityTransform())}))
	d.Tick(0.1)
	_, ok := d.Remote(2)
	require.True(t, ok)

	for i := 0; i < 40; i++ {
		d.Tick(0.1)
	}
	_, ok = d.Remote(2)
	assert.False(t, ok)
	assert.Zero(t, d.Stats().Proxies)
}

// An authority fed the bot's moves one frame late agrees with the bot's
// prediction, so every reconciliation is exact.
func TestDriver_ReconcilesAgainstAuthority(t *testing.T) {
	const dt = 0.125 // exact in float32
	conn := newLoopConn(1)
	d := NewDriver(conn, joinedAs(1), nil, 7)

	serverVehicle := replication.NewVehicle(1, kart.DefaultConstants(), netconfig.DefaultGravity,
		replication.NewFreeBody(kart.IdentityTransform()))
	server := replication.NewActor(serverVehicle, replication.RoleAuthorityRemote, replication.ActorOptions{})
	dispatcher := replication.NewDispatcher()

	var rejected int
	server.Authority().OnReject = func(kart.Move, error) { rejected++ }

	for i := 0; i < 40; i++ {
		for _, m := range conn.lb.Moves.Drain() {
			server.DeliverMove(m.Move)
		}
		dispatcher.Tick(server, dt)
		require.NoError(t, conn.lb.States.Post(messages.StateUpdate{VehicleID: 1, State: server.Authority().State()}))

		d.Tick(dt)
	}

	st := d.Stats()
	assert.Zero(t, rejected)
	assert.Greater(t, st.Reconciles, 30)
	assert.InDelta(t, 0, st.MaxCorrection, 1e-9)
	assert.LessOrEqual(t, d.Own().Predictor().Queue().Len(), 2)
}
