package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/protocol"
	"github.com/rs/zerolog"
	kcp "github.com/xtaci/kcp-go/v5"
)

// KCPClient speaks the framed wire protocol to a server's KCP listener.
type KCPClient struct {
	conn *kcp.UDPSession

	writeMu sync.Mutex
	mu      sync.RWMutex
	joined  bool
	vehicle uint32

	joinCh chan joinResult
	states Mailbox[messages.StateUpdate]
	done   chan struct{}
	once   sync.Once

	log zerolog.Logger
}

// DialKCP connects to addr and sends req. Use WaitJoined for the answer.
func DialKCP(addr string, req messages.JoinRequest) (*KCPClient, error) {
	conn, err := kcp.DialWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("kcp dial %s: %w", addr, err)
	}
	conn.SetStreamMode(true)
	conn.SetNoDelay(1, 10, 2, 1)
	conn.SetWindowSize(256, 256)

	c := &KCPClient{
		conn:   conn,
		joinCh: make(chan joinResult, 1),
		done:   make(chan struct{}),
		log:    logging.For("kcp-client"),
	}
	go c.readLoop()

	if err := c.write(req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("send join request: %w", err)
	}
	return c, nil
}

func (c *KCPClient) WaitJoined(ctx context.Context) (messages.JoinAccepted, error) {
	return waitJoin(ctx, c.joinCh)
}

func (c *KCPClient) SubmitMove(m kart.Move) error {
	c.mu.RLock()
	joined, id := c.joined, c.vehicle
	c.mu.RUnlock()
	if !joined {
		return ErrNotJoined
	}
	return c.write(messages.SubmitMove{VehicleID: id, Move: m})
}

func (c *KCPClient) DrainStates() []messages.StateUpdate {
	return c.states.Drain()
}

// Done is closed once the connection has ended.
func (c *KCPClient) Done() <-chan struct{} { return c.done }

func (c *KCPClient) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

func (c *KCPClient) write(msg any) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, b)
}

func (c *KCPClient) readLoop() {
	defer func() { _ = c.Close() }()

	for {
		payload, err := protocol.ReadFrame(c.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Warn().Err(err).Msg("read frame")
			}
			c.answerJoin(joinResult{err: fmt.Errorf("connection closed: %w", err)})
			return
		}

		msg, err := protocol.Decode(payload)
		if err != nil {
			c.log.Debug().Err(err).Msg("drop undecodable packet")
			continue
		}

		switch m := msg.(type) {
		case messages.StateUpdate:
			_ = c.states.Post(m)
		case messages.JoinAccepted:
			c.mu.Lock()
			c.joined = true
			c.vehicle = m.VehicleID
			c.mu.Unlock()
			c.log.Info().Uint32("kart", m.VehicleID).Str("server", m.ServerName).Msg("join accepted")
			c.answerJoin(joinResult{accepted: m})
		case messages.JoinRejected:
			c.answerJoin(joinResult{err: fmt.Errorf("%w: %s", ErrJoinRejected, m.Reason)})
		default:
			c.log.Debug().Type("type", msg).Msg("unexpected message from server")
		}
	}
}

func (c *KCPClient) answerJoin(r joinResult) {
	select {
	case c.joinCh <- r:
	default:
	}
}
