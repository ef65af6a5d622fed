package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/netcomponents"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoinedGame:
		return "joined"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Client manages a WebSocket connection to the game server.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type Client struct {
	mu sync.RWMutex

	state          ClientState
	lastError      error
	vehicleID      uint32
	reconnectToken string
	serverName     string
	tickRate       int
	conn           *websocket.Conn

	joinCh chan joinResult // size-1 buffered
	states Mailbox[messages.StateUpdate]

	log zerolog.Logger
}

func NewClient() *Client {
	return &Client{
		state:  StateDisconnected,
		joinCh: make(chan joinResult, 1),
		log:    logging.For("client"),
	}
}

// Connect dials the server in a background goroutine and initiates the join handshake.
func (c *Client) Connect(address string, req messages.JoinRequest) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		c.log.Info().Str("server", address).Msg("connected to server")
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()

		if err := c.SendMessage(req); err != nil {
			c.setError(fmt.Errorf("failed to send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) {
		c.log.Info().Uint32("kart", msg.VehicleID).Str("server", msg.ServerName).
			Int("tickRate", msg.TickRate).Msg("join accepted")
		c.mu.Lock()
		c.vehicleID = msg.VehicleID
		c.reconnectToken = msg.ReconnectToken
		c.serverName = msg.ServerName
		c.tickRate = msg.TickRate
		c.state = StateJoinedGame
		c.mu.Unlock()
		c.answerJoin(joinResult{accepted: msg})
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		err := fmt.Errorf("%w: %s", ErrJoinRejected, msg.Reason)
		c.log.Warn().Str("reason", msg.Reason).Msg("join rejected")
		c.setError(err)
		c.answerJoin(joinResult{err: err})
	})

	router.On(func(_ *router.NetworkClient, snapshot esync.WorldSnapshot) {
		c.applySnapshot(snapshot)
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		c.log.Info().Err(err).Msg("disconnected")
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		c.log.Warn().Err(err).Msg("client error")
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			err = fmt.Errorf("connection failed: %w", err)
			c.setError(err)
			c.answerJoin(joinResult{err: err})
		}
	}()
}

// applySnapshot turns every replicated kart of a WorldSnapshot into a
// StateUpdate.
func (c *Client) applySnapshot(snapshot esync.WorldSnapshot) {
	for _, ent := range snapshot {
		for _, componentBytes := range ent.State {
			instance, err := esync.Mapper.Deserialize(componentBytes)
			if err != nil {
				continue
			}
			if nv, ok := instance.(netcomponents.NetVehicleData); ok {
				_ = c.states.Post(messages.StateUpdate{VehicleID: nv.VehicleID, State: nv.State})
			}
		}
	}
}

func (c *Client) answerJoin(r joinResult) {
	select {
	case c.joinCh <- r:
	default:
	}
}

func (c *Client) WaitJoined(ctx context.Context) (messages.JoinAccepted, error) {
	return waitJoin(ctx, c.joinCh)
}

// SubmitMove sends a move for the joined kart.
func (c *Client) SubmitMove(m kart.Move) error {
	c.mu.RLock()
	joined, id := c.state == StateJoinedGame, c.vehicleID
	c.mu.RUnlock()
	if !joined {
		return ErrNotJoined
	}
	return c.SendMessage(messages.SubmitMove{VehicleID: id, Move: m})
}

func (c *Client) DrainStates() []messages.StateUpdate {
	return c.states.Drain()
}

func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) VehicleID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vehicleID
}

// ReconnectToken returns the token to present when joining again after a
// dropped connection.
func (c *Client) ReconnectToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnectToken
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

func (c *Client) SendMessage(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
