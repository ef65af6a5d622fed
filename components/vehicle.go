package components

import (
	"github.com/automoto/krazykarts-mp/replication"
	"github.com/yohamta/donburi"
)

// VehicleData ties a kart entity to its replication actor.
type VehicleData struct {
	Actor *replication.Actor
}

var Vehicle = donburi.NewComponentType[VehicleData]()
