package network

import (
	"context"
	"errors"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
)

var (
	ErrNotJoined    = errors.New("not joined")
	ErrJoinRejected = errors.New("join rejected")
)

// Conn is a joined or joining client connection on any transport. It is the
// move sender of the local kart's predictor.
type Conn interface {
	// WaitJoined blocks until the server answers the join request.
	WaitJoined(ctx context.Context) (messages.JoinAccepted, error)
	SubmitMove(m kart.Move) error
	// DrainStates returns every state received since the last call, oldest
	// first.
	DrainStates() []messages.StateUpdate
	Close() error
}

// joinResult is the server's answer to a join request.
type joinResult struct {
	accepted messages.JoinAccepted
	err      error
}

func waitJoin(ctx context.Context, ch <-chan joinResult) (messages.JoinAccepted, error) {
	select {
	case r := <-ch:
		return r.accepted, r.err
	case <-ctx.Done():
		return messages.JoinAccepted{}, ctx.Err()
	}
}
