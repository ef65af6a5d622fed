package core

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/automoto/krazykarts-mp/components"
	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/network"
	"github.com/automoto/krazykarts-mp/replication"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/netcomponents"
	"github.com/automoto/krazykarts-mp/shared/track"
	"github.com/automoto/krazykarts-mp/systems"
	"github.com/automoto/krazykarts-mp/tags"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/rs/zerolog"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

var ErrUnknownKart = errors.New("unknown kart")

// Kart is the server's record of one spawned kart.
type Kart struct {
	ID     uint32
	Name   string
	Entity donburi.Entity
	Actor  *replication.Actor
	Body   *track.Body

	connected  bool
	detachedAt time.Time
}

// Connected reports whether a driver currently owns the kart.
func (k *Kart) Connected() bool { return k.connected }

// Simulation is the authoritative world. Except for Enqueue, every method must
// be called from the game loop goroutine.
type Simulation struct {
	world      donburi.World
	ecs        *ecs.ECS
	track      *track.Track
	constants  kart.Constants
	gravity    float64
	dispatcher *replication.Dispatcher
	metrics    *Metrics

	// commands run at the start of the next tick, in order.
	commands network.Mailbox[func()]

	karts     map[uint32]*Kart
	nextID    uint32
	nextSpawn int
	dt        float64
	published []messages.StateUpdate
	log       zerolog.Logger
}

// NewSimulation creates an empty world on tr. Karts published by the world
// are synchronised to websocket clients through esync.
func NewSimulation(tr *track.Track, c kart.Constants, gravity float64, metrics *Metrics) *Simulation {
	world := donburi.NewWorld()
	srvsync.UseEsync(world)

	sim := &Simulation{
		world:      world,
		ecs:        ecs.NewECS(world),
		track:      tr,
		constants:  c,
		gravity:    gravity,
		dispatcher: replication.NewDispatcher(),
		metrics:    metrics,
		karts:      make(map[uint32]*Kart),
		nextID:     1,
		log:        logging.For("simulation"),
	}

	sim.ecs.AddSystem(systems.NewRoleDispatchSystem(sim.dispatcher, func() float64 { return sim.dt }))
	sim.ecs.AddSystem(sim.publishStates)
	return sim
}

// Spawn places a new kart on the next grid slot.
func (s *Simulation) Spawn(name string) (*Kart, error) {
	at := s.track.SpawnTransform(s.nextSpawn)
	s.nextSpawn++

	entity := s.world.Create(components.Vehicle, netcomponents.NetVehicle, netcomponents.NetDriver, tags.Kart)
	entry := s.world.Entry(entity)

	k := &Kart{
		ID:        s.nextID,
		Name:      name,
		Entity:    entity,
		Body:      s.track.NewBody(at),
		connected: true,
	}
	s.nextID++
	k.Actor = s.newActor(k)

	components.Vehicle.SetValue(entry, components.VehicleData{Actor: k.Actor})
	netcomponents.NetVehicle.SetValue(entry, netcomponents.NetVehicleData{
		VehicleID: k.ID,
		State:     k.Actor.Authority().State(),
	})
	netcomponents.NetDriver.SetValue(entry, netcomponents.NetDriverData{Name: name, Connected: true})

	if err := srvsync.NetworkSync(s.world, &entity, netcomponents.NetVehicle, netcomponents.NetDriver); err != nil {
		k.Body.Remove()
		s.world.Remove(entity)
		return nil, fmt.Errorf("network sync kart %d: %w", k.ID, err)
	}

	s.karts[k.ID] = k
	s.log.Info().Uint32("kart", k.ID).Str("driver", name).
		Floats64("at", at.Position[:2]).Msg("kart spawned")
	return k, nil
}

func (s *Simulation) newActor(k *Kart) *replication.Actor {
	v := replication.NewVehicle(k.ID, s.constants, s.gravity, k.Body)
	a := replication.NewActor(v, replication.RoleAuthorityRemote, replication.ActorOptions{})

	auth := a.Authority()
	auth.OnReject = func(m kart.Move, err error) {
		s.log.Debug().Err(err).Uint32("kart", k.ID).Float32("timestamp", m.Timestamp).Msg("move rejected")
		if s.metrics != nil {
			s.metrics.MoveRejected(err)
		}
	}
	auth.OnAccept = func(kart.Move) {
		if s.metrics != nil {
			s.metrics.MoveAccepted()
		}
	}
	return a
}

// Despawn removes a kart from the world and the track.
func (s *Simulation) Despawn(id uint32) error {
	k, ok := s.karts[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKart, id)
	}
	delete(s.karts, id)
	k.Body.Remove()
	if s.world.Valid(k.Entity) {
		s.world.Remove(k.Entity)
	}
	s.log.Info().Uint32("kart", id).Msg("kart despawned")
	return nil
}

// Detach keeps a kart in place after its driver left so the driver can
// reconnect to it.
func (s *Simulation) Detach(id uint32, now time.Time) error {
	k, ok := s.karts[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownKart, id)
	}
	k.connected = false
	k.detachedAt = now
	k.Actor.Authority().Teleport(k.Body.Transform())
	s.setDriver(k)
	return nil
}

// Reattach hands a detached kart back to a driver. The kart gets a fresh
// authority so the driver's move clock starts again from zero.
func (s *Simulation) Reattach(id uint32) (*Kart, error) {
	k, ok := s.karts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKart, id)
	}
	if k.connected {
		return nil, fmt.Errorf("kart %d already has a driver", id)
	}

	k.connected = true
	k.Actor = s.newActor(k)
	k.Actor.Authority().Teleport(k.Body.Transform())
	components.Vehicle.SetValue(s.world.Entry(k.Entity), components.VehicleData{Actor: k.Actor})
	s.setDriver(k)
	return k, nil
}

// ExpireDetached despawns karts whose driver has been gone longer than grace
// and returns their ids.
func (s *Simulation) ExpireDetached(now time.Time, grace time.Duration) []uint32 {
	var expired []uint32
	for id, k := range s.karts {
		if !k.connected && now.Sub(k.detachedAt) >= grace {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, id := range expired {
		_ = s.Despawn(id)
	}
	return expired
}

// Kart returns a spawned kart.
func (s *Simulation) Kart(id uint32) (*Kart, bool) {
	k, ok := s.karts[id]
	return k, ok
}

// Drivers counts karts with a connected driver.
func (s *Simulation) Drivers() int {
	n := 0
	for _, k := range s.karts {
		if k.connected {
			n++
		}
	}
	return n
}

// Enqueue schedules fn to run on the game loop before the next step. Safe to
// call from any goroutine; fails once the simulation is closed.
func (s *Simulation) Enqueue(fn func()) error {
	return s.commands.Post(fn)
}

// Close rejects further commands.
func (s *Simulation) Close() {
	s.commands.Close()
}

// Tick runs pending commands, then the ECS for dt seconds. It returns the
// published state of every kart, ordered by kart id.
func (s *Simulation) Tick(dt float64) []messages.StateUpdate {
	for _, cmd := range s.commands.Drain() {
		cmd()
	}

	s.dt = dt
	s.published = s.published[:0]
	s.ecs.Update()

	sort.Slice(s.published, func(i, j int) bool { return s.published[i].VehicleID < s.published[j].VehicleID })
	out := make([]messages.StateUpdate, len(s.published))
	copy(out, s.published)
	if s.metrics != nil && len(out) > 0 {
		s.metrics.StatesPublished(len(out))
	}
	return out
}

// publishStates copies each authority's state into the replicated component.
func (s *Simulation) publishStates(e *ecs.ECS) {
	components.Vehicle.Each(e.World, func(entry *donburi.Entry) {
		a := components.Vehicle.Get(entry).Actor
		if a == nil || a.Authority() == nil {
			return
		}
		nv := netcomponents.NetVehicle.Get(entry)
		nv.State = a.Authority().State()
		s.published = append(s.published, messages.StateUpdate{VehicleID: nv.VehicleID, State: nv.State})
	})
}

func (s *Simulation) setDriver(k *Kart) {
	entry := s.world.Entry(k.Entity)
	netcomponents.NetDriver.SetValue(entry, netcomponents.NetDriverData{Name: k.Name, Connected: k.connected})
}

func (s *Simulation) World() donburi.World { return s.world }

func (s *Simulation) Track() *track.Track { return s.track }

func (s *Simulation) Constants() kart.Constants { return s.constants }

func (s *Simulation) Gravity() float64 { return s.gravity }
