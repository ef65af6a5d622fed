// Package bot is a headless client: it joins a server, drives its kart with
// an autopilot while predicting it, and dead-reckons every other kart.
package bot

import (
	"context"
	"time"

	"github.com/automoto/krazykarts-mp/components"
	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/network"
	"github.com/automoto/krazykarts-mp/replication"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/automoto/krazykarts-mp/shared/track"
	"github.com/automoto/krazykarts-mp/systems"
	"github.com/automoto/krazykarts-mp/tags"
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// proxyTimeout is how long a remote kart may go without a state before it is
// dropped.
const proxyTimeout = 3.0

// Stats summarise a driver's run.
type Stats struct {
	Ticks             int
	StatesApplied     int
	DuplicatesSkipped int
	Reconciles        int
	MaxCorrection     float64 // world units
	TotalCorrection   float64
	Proxies           int
}

// MeanCorrection is the average reconciliation correction.
func (s Stats) MeanCorrection() float64 {
	if s.Reconciles == 0 {
		return 0
	}
	return s.TotalCorrection / float64(s.Reconciles)
}

type remote struct {
	actor  *replication.Actor
	entity donburi.Entity
	seen   float64
}

// Driver owns the client world of one bot.
type Driver struct {
	conn   network.Conn
	joined messages.JoinAccepted

	world donburi.World
	ecs   *ecs.ECS
	own   *replication.Actor

	remotes   map[uint32]*remote
	lastState map[uint32]messages.VehicleState
	elapsed   float64
	dt        float64
	stats     Stats

	log zerolog.Logger
}

// NewDriver builds the world for a joined connection. tr may be nil, in which
// case the own kart predicts without walls.
func NewDriver(conn network.Conn, joined messages.JoinAccepted, tr *track.Track, seed int64) *Driver {
	d := &Driver{
		conn:      conn,
		joined:    joined,
		world:     donburi.NewWorld(),
		remotes:   make(map[uint32]*remote),
		lastState: make(map[uint32]messages.VehicleState),
		log:       logging.For("bot").With().Uint32("kart", joined.VehicleID).Logger(),
	}
	d.ecs = ecs.NewECS(d.world)
	dt := func() float64 { return d.dt }
	d.ecs.AddSystem(systems.UpdateAutopilot(dt))
	d.ecs.AddSystem(systems.NewRoleDispatchSystem(replication.NewDispatcher(), dt))

	var pose replication.PoseProvider
	if tr != nil {
		pose = tr.NewBody(joined.Spawn)
	} else {
		pose = replication.NewFreeBody(joined.Spawn)
	}
	v := replication.NewVehicle(joined.VehicleID, joined.Constants, joined.Gravity, pose)
	d.own = replication.NewActor(v, replication.RoleAutonomousProxy, replication.ActorOptions{
		Sender:        conn,
		QueueCapacity: netconfig.PredictionQueueSize,
	})
	d.own.OnReconcile = d.recordReconcile

	entry := d.world.Entry(d.world.Create(components.Vehicle, components.Autopilot, tags.Kart, tags.LocalKart))
	components.Vehicle.SetValue(entry, components.VehicleData{Actor: d.own})
	components.Autopilot.SetValue(entry, systems.NewAutopilot(seed))
	return d
}

// Tick applies every state received since the last tick and runs one frame of
// dt seconds.
func (d *Driver) Tick(dt float64) {
	d.elapsed += dt
	for _, u := range d.conn.DrainStates() {
		d.applyState(u)
	}
	d.pruneRemotes()

	d.dt = dt
	d.ecs.Update()
	d.stats.Ticks++
}

// applyState routes u to its kart. A state equal to the last one received for
// the same kart carries nothing new and is skipped.
func (d *Driver) applyState(u messages.StateUpdate) {
	if last, ok := d.lastState[u.VehicleID]; ok && last == u.State {
		d.stats.DuplicatesSkipped++
		if r, ok := d.remotes[u.VehicleID]; ok {
			r.seen = d.elapsed
		}
		return
	}
	d.lastState[u.VehicleID] = u.State
	d.stats.StatesApplied++

	if u.VehicleID == d.joined.VehicleID {
		d.own.DeliverState(u.State)
		return
	}

	r, ok := d.remotes[u.VehicleID]
	if !ok {
		r = d.spawnRemote(u)
	}
	r.seen = d.elapsed
	r.actor.DeliverState(u.State)
}

func (d *Driver) spawnRemote(u messages.StateUpdate) *remote {
	v := replication.NewVehicle(u.VehicleID, d.joined.Constants, d.joined.Gravity,
		replication.NewFreeBody(u.State.Transform))
	a := replication.NewActor(v, replication.RoleSimulatedProxy, replication.ActorOptions{})

	entity := d.world.Create(components.Vehicle, tags.Kart)
	components.Vehicle.SetValue(d.world.Entry(entity), components.VehicleData{Actor: a})

	r := &remote{actor: a, entity: entity}
	d.remotes[u.VehicleID] = r
	d.stats.Proxies = len(d.remotes)
	d.log.Debug().Uint32("remote", u.VehicleID).Msg("remote kart appeared")
	return r
}

func (d *Driver) pruneRemotes() {
	for id, r := range d.remotes {
		if d.elapsed-r.seen < proxyTimeout {
			continue
		}
		d.world.Remove(r.entity)
		delete(d.remotes, id)
		delete(d.lastState, id)
		d.log.Debug().Uint32("remote", id).Msg("remote kart gone")
	}
	d.stats.Proxies = len(d.remotes)
}

func (d *Driver) recordReconcile(res replication.ReconcileResult) {
	d.stats.Reconciles++
	d.stats.TotalCorrection += res.Correction
	d.stats.MaxCorrection = max(d.stats.MaxCorrection, res.Correction)
	if res.Correction > netconfig.KartSize/4 {
		d.log.Debug().Float64("correction", res.Correction).Int("replayed", res.Replayed).Msg("large correction")
	}
}

// Run ticks at frameRate until ctx is done, logging stats every second.
func (d *Driver) Run(ctx context.Context, frameRate int) Stats {
	frame := time.Second / time.Duration(frameRate)
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	report := time.NewTicker(time.Second)
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			return d.stats
		case <-ticker.C:
			d.Tick(frame.Seconds())
		case <-report.C:
			d.logStats()
		}
	}
}

func (d *Driver) logStats() {
	pos := d.own.Vehicle().Transform().Position
	d.log.Info().
		Floats64("pos", pos[:2]).
		Float64("speed", d.own.Vehicle().Velocity().Len()).
		Int("pending", d.own.Predictor().Queue().Len()).
		Int("reconciles", d.stats.Reconciles).
		Float64("meanCorrection", d.stats.MeanCorrection()).
		Float64("maxCorrection", d.stats.MaxCorrection).
		Int("remotes", d.stats.Proxies).
		Msg("driving")
}

func (d *Driver) Stats() Stats { return d.stats }

// Own returns the actor of the bot's kart.
func (d *Driver) Own() *replication.Actor { return d.own }

// Remote returns the actor of another kart, if one has been seen.
func (d *Driver) Remote(id uint32) (*replication.Actor, bool) {
	r, ok := d.remotes[id]
	if !ok {
		return nil, false
	}
	return r.actor, true
}
