package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/automoto/krazykarts-mp/config"
	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/replication"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/track"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// peer is one connected client on any transport.
type peer struct {
	id      string
	send    func(msg any) error
	limiter *rate.Limiter

	// Written by the game loop, read by transport goroutines under Server.mu.
	joined    bool
	vehicleID uint32
	actor     *replication.Actor
}

// Server manages the game state and client connections
type Server struct {
	cfg     config.ServerConfig
	sim     *Simulation
	loop    *GameLoop
	tokens  *TokenIssuer
	metrics *Metrics
	kcp     *KCPHub
	ws      *transports.WsServerTransport

	mu    sync.RWMutex
	peers map[string]*peer

	now func() time.Time
	log zerolog.Logger
}

// NewServer creates a server for tr. Network components must already be
// registered.
func NewServer(cfg *config.Config, tr *track.Track) (*Server, error) {
	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	tokens, err := NewTokenIssuer(cfg.Server.ReconnectSecret, cfg.Server.ReconnectGrace)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg.Server,
		sim:     NewSimulation(tr, cfg.Kart, cfg.World.Gravity, metrics),
		tokens:  tokens,
		metrics: metrics,
		peers:   make(map[string]*peer),
		now:     time.Now,
		log:     logging.For("server"),
	}
	s.loop = NewGameLoop(s, cfg.Server.TickRate)
	return s, nil
}

// Start runs the game loop, the KCP listener if configured, and the websocket
// transport. It blocks until the websocket transport fails.
func (s *Server) Start() error {
	if s.cfg.KCPPort != 0 {
		if err := s.StartKCP(fmt.Sprintf(":%d", s.cfg.KCPPort)); err != nil {
			return err
		}
	}
	s.StartLoop()
	return s.ListenAndServeWS()
}

// StartLoop runs the game loop in the background.
func (s *Server) StartLoop() {
	go s.loop.Run()
}

// StartKCP listens for KCP clients on addr in the background.
func (s *Server) StartKCP(addr string) error {
	hub, err := ListenKCP(addr, s)
	if err != nil {
		return err
	}
	s.kcp = hub
	go hub.Serve()
	s.log.Info().Str("addr", hub.Addr().String()).Msg("kcp listening")
	return nil
}

// ListenAndServeWS serves websocket clients through necs. WorldSnapshots
// reach them from the game loop's esync pass.
func (s *Server) ListenAndServeWS() error {
	s.setupRouterCallbacks()
	s.ws = transports.NewWsServerTransport(s.cfg.Port, "", nil)
	s.log.Info().Uint("port", s.cfg.Port).Msg("websocket listening")
	return s.ws.Start()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() {
	s.loop.Stop()
	if s.kcp != nil {
		s.kcp.Close()
	}
	s.sim.Close()
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.connect(wsPeerID(client), client.SendMessage)
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		s.disconnect(wsPeerID(client), err)
	})

	// necs runs connect callbacks on their own goroutine, so a message can
	// beat OnConnect. Handlers register the peer themselves.
	router.On(func(client *router.NetworkClient, req messages.JoinRequest) {
		s.connect(wsPeerID(client), client.SendMessage)
		s.join(wsPeerID(client), req)
	})

	router.On(func(client *router.NetworkClient, msg messages.SubmitMove) {
		s.connect(wsPeerID(client), client.SendMessage)
		s.move(wsPeerID(client), msg)
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		s.log.Warn().Err(err).Str("peer", wsPeerID(client)).Msg("client error")
	})
}

func wsPeerID(client *router.NetworkClient) string {
	return fmt.Sprintf("ws-%s", client.Id())
}

// connect registers a peer. send must be safe to call from the game loop.
// Connecting a known peer again is a no-op.
func (s *Server) connect(id string, send func(any) error) {
	s.mu.Lock()
	if _, ok := s.peers[id]; ok {
		s.mu.Unlock()
		return
	}
	n := s.cfg.MaxMovesPerSecond
	s.peers[id] = &peer{
		id:      id,
		send:    send,
		limiter: rate.NewLimiter(rate.Limit(n), n),
	}
	s.mu.Unlock()
	s.log.Info().Str("peer", id).Msg("client connected")
}

func (s *Server) join(id string, req messages.JoinRequest) {
	p := s.peer(id)
	if p == nil {
		return
	}
	if s.cfg.Version != "" && req.Version != s.cfg.Version {
		s.reject(p, fmt.Sprintf("version mismatch: server %s, client %s", s.cfg.Version, req.Version))
		return
	}
	_ = s.sim.Enqueue(func() { s.admit(p, req) })
}

// admit gives p a kart. Runs on the game loop.
func (s *Server) admit(p *peer, req messages.JoinRequest) {
	s.mu.RLock()
	joined, live := p.joined, s.peers[p.id] == p
	s.mu.RUnlock()
	if joined || !live {
		return
	}

	var k *Kart
	if req.ReconnectToken != "" {
		id, err := s.tokens.Verify(req.ReconnectToken)
		if err == nil {
			k, err = s.sim.Reattach(id)
		}
		if err != nil {
			s.log.Info().Err(err).Str("peer", p.id).Msg("reconnect refused, spawning a new kart")
		}
	}

	if k == nil {
		if s.sim.Drivers() >= s.cfg.MaxPlayers {
			s.reject(p, "server full")
			return
		}
		var err error
		if k, err = s.sim.Spawn(req.PlayerName); err != nil {
			s.log.Error().Err(err).Str("peer", p.id).Msg("spawn failed")
			s.reject(p, "spawn failed")
			return
		}
	}

	token, err := s.tokens.Issue(k.ID)
	if err != nil {
		s.log.Error().Err(err).Uint32("kart", k.ID).Msg("issue reconnect token")
	}

	s.mu.Lock()
	p.joined = true
	p.vehicleID = k.ID
	p.actor = k.Actor
	s.mu.Unlock()
	s.metrics.PlayerJoined()

	err = p.send(messages.JoinAccepted{
		VehicleID:      k.ID,
		ReconnectToken: token,
		ServerName:     s.cfg.Name,
		TickRate:       s.cfg.TickRate,
		Gravity:        s.sim.Gravity(),
		Constants:      s.sim.Constants(),
		Spawn:          k.Actor.Authority().State().Transform,
		Track:          s.sim.Track().ID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("peer", p.id).Msg("send join accepted")
	}
	s.log.Info().Str("peer", p.id).Uint32("kart", k.ID).Str("driver", req.PlayerName).Msg("player joined")
}

func (s *Server) reject(p *peer, reason string) {
	s.log.Info().Str("peer", p.id).Str("reason", reason).Msg("join rejected")
	if err := p.send(messages.JoinRejected{Reason: reason}); err != nil {
		s.log.Warn().Err(err).Str("peer", p.id).Msg("send join rejected")
	}
}

// move hands a move to the peer's kart. Moves for another kart, moves before
// joining and moves over the rate limit are dropped.
func (s *Server) move(id string, msg messages.SubmitMove) {
	s.mu.RLock()
	p := s.peers[id]
	var actor *replication.Actor
	if p != nil && p.joined && p.vehicleID == msg.VehicleID {
		actor = p.actor
	}
	s.mu.RUnlock()

	if actor == nil {
		s.log.Debug().Str("peer", id).Uint32("kart", msg.VehicleID).Msg("move for a kart the peer does not drive")
		return
	}
	if !p.limiter.Allow() {
		s.metrics.MoveRateLimited()
		return
	}
	actor.DeliverMove(msg.Move)
}

func (s *Server) disconnect(id string, err error) {
	s.mu.Lock()
	p := s.peers[id]
	delete(s.peers, id)
	s.mu.Unlock()

	ev := s.log.Info()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("peer", id).Msg("client disconnected")

	if p == nil {
		return
	}
	_ = s.sim.Enqueue(func() {
		s.mu.RLock()
		joined, vid := p.joined, p.vehicleID
		s.mu.RUnlock()
		if !joined {
			return
		}
		s.metrics.PlayerLeft()
		if s.cfg.ReconnectGrace <= 0 {
			_ = s.sim.Despawn(vid)
			return
		}
		_ = s.sim.Detach(vid, s.now())
	})
}

func (s *Server) peer(id string) *peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peers[id]
}

// tick runs one step of the game loop and returns the published states.
func (s *Server) tick(dt float64) []messages.StateUpdate {
	if s.cfg.ReconnectGrace > 0 {
		for _, id := range s.sim.ExpireDetached(s.now(), s.cfg.ReconnectGrace) {
			s.log.Info().Uint32("kart", id).Msg("reconnect grace expired")
		}
	}

	updates := s.sim.Tick(dt)
	if s.kcp != nil {
		s.kcp.Broadcast(updates)
	}
	return updates
}

// Simulation returns the authoritative world.
func (s *Server) Simulation() *Simulation { return s.sim }

// PlayerCount returns the number of connected players
func (s *Server) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.peers {
		if p.joined {
			n++
		}
	}
	return n
}
