package network

import (
	"errors"
	"sync"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
)

var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is an ordered, unbounded message queue. Producers may post from
// any goroutine; the consumer drains it once per tick.
type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
}

// Post appends v. It fails once the mailbox is closed.
func (b *Mailbox[T]) Post(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrMailboxClosed
	}
	b.items = append(b.items, v)
	return nil
}

// Drain removes and returns everything posted so far, in order.
func (b *Mailbox[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Close rejects further posts. Pending items can still be drained.
func (b *Mailbox[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

// Loopback joins a client and a server running in the same process: one
// queue carries moves to the server, the other carries states back.
type Loopback struct {
	Moves  Mailbox[messages.SubmitMove]
	States Mailbox[messages.StateUpdate]
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

// Sender returns a move sender for the given kart.
func (l *Loopback) Sender(vehicleID uint32) *LoopbackSender {
	return &LoopbackSender{box: &l.Moves, vehicleID: vehicleID}
}

// Close shuts both directions.
func (l *Loopback) Close() {
	l.Moves.Close()
	l.States.Close()
}

// LoopbackSender posts one kart's moves into a Loopback.
type LoopbackSender struct {
	box       *Mailbox[messages.SubmitMove]
	vehicleID uint32
}

func (s *LoopbackSender) SubmitMove(m kart.Move) error {
	return s.box.Post(messages.SubmitMove{VehicleID: s.vehicleID, Move: m})
}
