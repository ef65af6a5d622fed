package core

import (
	"os"
	"testing"
	"time"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/netcomponents"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/automoto/krazykarts-mp/shared/protocol"
	"github.com/automoto/krazykarts-mp/shared/track"
	"github.com/automoto/krazykarts-mp/shared/trackdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadOval(t *testing.T) *track.Track {
	t.Helper()
	data, err := trackdata.LoadCollisionData(os.DirFS("../../shared/trackdata/testdata"), "oval.tmx")
	require.NoError(t, err)
	return track.New(data)
}

func newTestSimulation(t *testing.T) *Simulation {
	t.Helper()
	require.NoError(t, protocol.RegisterComponents())
	metrics, err := NewMetrics()
	require.NoError(t, err)
	return NewSimulation(loadOval(t), kart.DefaultConstants(), netconfig.DefaultGravity, metrics)
}

func TestSimulation_SpawnUsesGridSlots(t *testing.T) {
	sim := newTestSimulation(t)

	a, err := sim.Spawn("ada")
	require.NoError(t, err)
	b, err := sim.Spawn("bob")
	require.NoError(t, err)

	assert.Equal(t, uint32(1), a.ID)
	assert.Equal(t, uint32(2), b.ID)
	assert.Equal(t, sim.Track().SpawnTransform(0).Position, a.Actor.Vehicle().Transform().Position)
	assert.Equal(t, sim.Track().SpawnTransform(1).Position, b.Actor.Vehicle().Transform().Position)
	assert.Equal(t, 2, sim.Drivers())

	driver := netcomponents.NetDriver.Get(sim.World().Entry(a.Entity))
	assert.Equal(t, "ada", driver.Name)
	assert.True(t, driver.Connected)
}

func TestSimulation_TickAppliesDeliveredMoves(t *testing.T) {
	sim := newTestSimulation(t)
	k, err := sim.Spawn("ada")
	require.NoError(t, err)
	start := k.Body.Transform().Position

	// The first tick gives the kart's clock room for the move.
	sim.Tick(0.1)
	k.Actor.DeliverMove(kart.NewMove(1, 0, 0.05, 0.05))
	updates := sim.Tick(0.1)

	require.Len(t, updates, 1)
	assert.Equal(t, k.ID, updates[0].VehicleID)
	assert.Equal(t, float32(0.05), updates[0].State.LastMove.Timestamp)
	assert.Greater(t, updates[0].State.Transform.Position.X(), start.X())

	nv := netcomponents.NetVehicle.Get(sim.World().Entry(k.Entity))
	assert.Equal(t, updates[0].State, nv.State)
}

func TestSimulation_RejectsMovesAheadOfClock(t *testing.T) {
	sim := newTestSimulation(t)
	k, err := sim.Spawn("ada")
	require.NoError(t, err)

	k.Actor.DeliverMove(kart.NewMove(1, 0, 0.05, 0.05))
	updates := sim.Tick(0.1)

	require.Len(t, updates, 1)
	assert.Zero(t, updates[0].State.LastMove.Timestamp)
	assert.Equal(t, sim.Track().SpawnTransform(0).Position, updates[0].State.Transform.Position)
}

func TestSimulation_TickOrdersUpdatesByKart(t *testing.T) {
	sim := newTestSimulation(t)
	for _, name := range []string{"a", "b", "c"} {
		_, err := sim.Spawn(name)
		require.NoError(t, err)
	}

	updates := sim.Tick(0.1)
	require.Len(t, updates, 3)
	for i, u := range updates {
		assert.Equal(t, uint32(i+1), u.VehicleID)
	}
}

func TestSimulation_DetachAndReattach(t *testing.T) {
	sim := newTestSimulation(t)
	k, err := sim.Spawn("ada")
	require.NoError(t, err)

	sim.Tick(0.1)
	k.Actor.DeliverMove(kart.NewMove(1, 0, 0.05, 0.05))
	sim.Tick(0.1)
	moved := k.Body.Transform()

	now := time.Now()
	require.NoError(t, sim.Detach(k.ID, now))
	assert.False(t, k.Connected())
	assert.Zero(t, sim.Drivers())
	assert.False(t, netcomponents.NetDriver.Get(sim.World().Entry(k.Entity)).Connected)

	back, err := sim.Reattach(k.ID)
	require.NoError(t, err)
	assert.Same(t, k, back)
	assert.True(t, back.Connected())
	assert.Equal(t, moved.Position, back.Actor.Authority().State().Transform.Position)

	// The new driver's move clock starts again from zero.
	sim.Tick(0.1)
	back.Actor.DeliverMove(kart.NewMove(1, 0, 0.05, 0.05))
	updates := sim.Tick(0.1)
	require.Len(t, updates, 1)
	assert.Equal(t, float32(0.05), updates[0].State.LastMove.Timestamp)

	_, err = sim.Reattach(k.ID)
	assert.Error(t, err, "kart already has a driver")
}

func TestSimulation_ExpireDetached(t *testing.T) {
	sim := newTestSimulation(t)
	a, err := sim.Spawn("ada")
	require.NoError(t, err)
	b, err := sim.Spawn("bob")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, sim.Detach(a.ID, now))

	assert.Empty(t, sim.ExpireDetached(now.Add(time.Second), 5*time.Second))
	assert.Equal(t, []uint32{a.ID}, sim.ExpireDetached(now.Add(5*time.Second), 5*time.Second))

	_, ok := sim.Kart(a.ID)
	assert.False(t, ok)
	assert.False(t, sim.World().Valid(a.Entity))
	_, ok = sim.Kart(b.ID)
	assert.True(t, ok)
}

func TestSimulation_UnknownKart(t *testing.T) {
	sim := newTestSimulation(t)

	assert.ErrorIs(t, sim.Despawn(9), ErrUnknownKart)
	assert.ErrorIs(t, sim.Detach(9, time.Now()), ErrUnknownKart)
	_, err := sim.Reattach(9)
	assert.ErrorIs(t, err, ErrUnknownKart)
}

func TestSimulation_EnqueueRunsOnNextTick(t *testing.T) {
	sim := newTestSimulation(t)

	var spawned *Kart
	require.NoError(t, sim.Enqueue(func() {
		k, err := sim.Spawn("late")
		require.NoError(t, err)
		spawned = k
	}))
	assert.Nil(t, spawned)

	updates := sim.Tick(0.1)
	require.NotNil(t, spawned)
	require.Len(t, updates, 1)
	assert.Equal(t, spawned.ID, updates[0].VehicleID)

	sim.Close()
	assert.Error(t, sim.Enqueue(func() {}))
}
