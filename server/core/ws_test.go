package core

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/automoto/krazykarts-mp/config"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeTCPPort(t *testing.T) uint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint(port)
}

// The websocket server cannot be shut down, so this is the only test that
// starts one.
func TestServer_WebsocketJoinAndDrive(t *testing.T) {
	t.Cleanup(router.ResetRouter)

	port := freeTCPPort(t)
	s := newTestServer(t, func(c *config.Config) { c.Server.Port = port })
	go func() { _ = s.ListenAndServeWS() }()

	received := make(chan any, 64)
	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) { received <- msg })
	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) { received <- msg })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		c, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://127.0.0.1:%d/", port), nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, 5*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = conn.CloseNow() })

	go func() {
		for {
			_, payload, err := conn.Read(ctx)
			if err != nil {
				return
			}
			// Snapshots and other unhandled types are skipped.
			_ = router.ProcessMessage(nil, payload)
		}
	}()

	write := func(msg any) {
		b, err := router.Serialize(msg)
		require.NoError(t, err)
		require.NoError(t, conn.Write(ctx, websocket.MessageBinary, b))
	}

	// Sent straight after the handshake, possibly before the server's
	// connect callback has run.
	write(messages.JoinRequest{PlayerName: "ws"})

	var acc messages.JoinAccepted
	require.Eventually(t, func() bool {
		s.tick(0.05)
		select {
		case msg := <-received:
			a, ok := msg.(messages.JoinAccepted)
			acc = a
			return ok
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, uint32(1), acc.VehicleID)
	assert.NotEmpty(t, acc.ReconnectToken)

	write(messages.SubmitMove{VehicleID: acc.VehicleID, Move: kart.NewMove(1, 0, 0.01, 0.01)})

	require.Eventually(t, func() bool {
		for _, u := range s.tick(0.05) {
			if u.VehicleID == acc.VehicleID && u.State.LastMove.Timestamp == 0.01 {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool {
		s.tick(0)
		return s.PlayerCount() == 0
	}, 5*time.Second, 20*time.Millisecond)
}
