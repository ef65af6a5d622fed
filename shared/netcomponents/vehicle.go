package netcomponents

import (
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/yohamta/donburi"
)

// NetVehicleData is the replicated part of a kart: which kart it is and its
// latest authoritative state. Clients never write it.
type NetVehicleData struct {
	VehicleID uint32
	State     messages.VehicleState
}

var NetVehicle = donburi.NewComponentType[NetVehicleData]()
