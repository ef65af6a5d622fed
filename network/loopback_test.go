package network

import (
	"sync"
	"testing"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailbox_DrainKeepsOrder(t *testing.T) {
	var b Mailbox[int]
	for i := range 5 {
		require.NoError(t, b.Post(i))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, b.Drain())
	assert.Empty(t, b.Drain())
}

func TestMailbox_ConcurrentPosts(t *testing.T) {
	var b Mailbox[int]
	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_ = b.Post(w*1000 + i)
			}
		}()
	}
	wg.Wait()

	got := b.Drain()
	require.Len(t, got, 400)

	// Each producer's own posts stay in order.
	last := map[int]int{}
	for _, v := range got {
		w := v / 1000
		if prev, ok := last[w]; ok {
			assert.Greater(t, v, prev)
		}
		last[w] = v
	}
}

func TestMailbox_Close(t *testing.T) {
	var b Mailbox[string]
	require.NoError(t, b.Post("kept"))
	b.Close()

	assert.ErrorIs(t, b.Post("dropped"), ErrMailboxClosed)
	assert.Equal(t, []string{"kept"}, b.Drain())
}

func TestLoopback_SenderTagsVehicle(t *testing.T) {
	l := NewLoopback()
	m := kart.Move{Throttle: 1, DeltaTime: 0.1, Timestamp: 0.1}

	require.NoError(t, l.Sender(4).SubmitMove(m))
	require.NoError(t, l.States.Post(messages.StateUpdate{VehicleID: 4}))

	assert.Equal(t, []messages.SubmitMove{{VehicleID: 4, Move: m}}, l.Moves.Drain())
	assert.Len(t, l.States.Drain(), 1)

	l.Close()
	assert.ErrorIs(t, l.Sender(4).SubmitMove(m), ErrMailboxClosed)
}
