package messages

import "github.com/automoto/krazykarts-mp/shared/kart"

// SubmitMove carries one move from the owning client to the server. The
// server resolves the kart from the connection; VehicleID is only checked
// against it.
type SubmitMove struct {
	VehicleID uint32
	Move      kart.Move
}
