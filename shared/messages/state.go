package messages

import (
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/go-gl/mathgl/mgl64"
)

// VehicleState is the authoritative snapshot of one kart. It is written only
// by the server and overwritten wholesale by every receiver.
type VehicleState struct {
	LastMove  kart.Move
	Transform kart.Transform
	Velocity  mgl64.Vec3 // m/s
}

// NewVehicleState returns the state of a freshly spawned kart: zero velocity
// at the given transform.
func NewVehicleState(t kart.Transform) VehicleState {
	return VehicleState{Transform: t}
}

// StateUpdate addresses a VehicleState to a kart on transports that do not
// synchronise entities themselves.
type StateUpdate struct {
	VehicleID uint32
	State     VehicleState
}
