package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/protocol"
	"github.com/rs/zerolog"
	kcp "github.com/xtaci/kcp-go/v5"
)

const sendQueueSize = 64

var ErrSendQueueFull = errors.New("send queue full")

// KCPHub accepts KCP sessions and speaks the framed wire protocol on them.
// It is the UDP alternative to the websocket transport.
type KCPHub struct {
	ln     *kcp.Listener
	server *Server

	mu       sync.Mutex
	sessions map[string]*kcpSession
	closed   bool

	log zerolog.Logger
}

type kcpSession struct {
	id        string
	conn      *kcp.UDPSession
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// ListenKCP opens a KCP listener on addr. Call Serve to accept sessions.
func ListenKCP(addr string, server *Server) (*KCPHub, error) {
	ln, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("kcp listen %s: %w", addr, err)
	}
	return &KCPHub{
		ln:       ln,
		server:   server,
		sessions: make(map[string]*kcpSession),
		log:      logging.For("kcp"),
	}, nil
}

func (h *KCPHub) Addr() net.Addr { return h.ln.Addr() }

// Serve accepts sessions until Close.
func (h *KCPHub) Serve() {
	for {
		conn, err := h.ln.AcceptKCP()
		if err != nil {
			h.mu.Lock()
			closed := h.closed
			h.mu.Unlock()
			if !closed {
				h.log.Error().Err(err).Msg("accept")
			}
			return
		}
		conn.SetStreamMode(true)
		conn.SetNoDelay(1, 10, 2, 1)
		conn.SetWindowSize(256, 256)

		sess := &kcpSession{
			id:   "kcp-" + conn.RemoteAddr().String(),
			conn: conn,
			out:  make(chan []byte, sendQueueSize),
			done: make(chan struct{}),
		}
		h.mu.Lock()
		h.sessions[sess.id] = sess
		h.mu.Unlock()

		h.server.connect(sess.id, sess.send)
		go sess.writeLoop(h.log)
		go h.readLoop(sess)
	}
}

// Broadcast sends every update to every session. Sessions that fall behind
// lose updates; the next one supersedes them.
func (h *KCPHub) Broadcast(updates []messages.StateUpdate) {
	if len(updates) == 0 {
		return
	}
	frames := make([][]byte, 0, len(updates))
	for _, u := range updates {
		b, err := protocol.Encode(u)
		if err != nil {
			h.log.Error().Err(err).Uint32("kart", u.VehicleID).Msg("encode state")
			continue
		}
		frames = append(frames, b)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sess := range h.sessions {
		for _, f := range frames {
			_ = sess.enqueue(f)
		}
	}
}

// Close stops accepting and closes every session.
func (h *KCPHub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*kcpSession, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.mu.Unlock()

	_ = h.ln.Close()
	for _, sess := range sessions {
		sess.close()
	}
}

func (h *KCPHub) readLoop(sess *kcpSession) {
	var cause error
	defer func() {
		sess.close()
		h.mu.Lock()
		delete(h.sessions, sess.id)
		h.mu.Unlock()
		h.server.disconnect(sess.id, cause)
	}()

	for {
		payload, err := protocol.ReadFrame(sess.conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				cause = err
			}
			return
		}

		msg, err := protocol.Decode(payload)
		if err != nil {
			h.log.Debug().Err(err).Str("peer", sess.id).Msg("drop undecodable packet")
			continue
		}

		switch m := msg.(type) {
		case messages.JoinRequest:
			h.server.join(sess.id, m)
		case messages.SubmitMove:
			h.server.move(sess.id, m)
		default:
			h.log.Debug().Str("peer", sess.id).Type("type", msg).Msg("unexpected message from client")
		}
	}
}

func (s *kcpSession) send(msg any) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return s.enqueue(b)
}

func (s *kcpSession) enqueue(frame []byte) error {
	select {
	case <-s.done:
		return net.ErrClosed
	default:
	}
	select {
	case s.out <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (s *kcpSession) writeLoop(log zerolog.Logger) {
	for {
		select {
		case <-s.done:
			return
		case frame := <-s.out:
			if err := protocol.WriteFrame(s.conn, frame); err != nil {
				log.Debug().Err(err).Str("peer", s.id).Msg("write frame")
				s.close()
				return
			}
		}
	}
}

func (s *kcpSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
