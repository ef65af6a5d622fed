package messages

import "github.com/automoto/krazykarts-mp/shared/kart"

// JoinRequest is sent by a client after connecting to request a kart.
type JoinRequest struct {
	Version        string
	PlayerName     string
	ReconnectToken string
}

// JoinAccepted is sent by the server when a client's join request is accepted.
// Constants are the kart's physics constants; the client must predict with
// exactly these values.
type JoinAccepted struct {
	VehicleID      uint32
	ReconnectToken string
	ServerName     string
	TickRate       int
	Gravity        float64
	Constants      kart.Constants
	Spawn          kart.Transform
	Track          string // file stem of the track being raced
}

// JoinRejected is sent by the server when a client's join request is rejected.
type JoinRejected struct {
	Reason string
}
