package protocol

import (
	"fmt"
	"sync"

	"github.com/automoto/krazykarts-mp/shared/netcomponents"
	"github.com/leap-fish/necs/esync"
)

// Sync ID constants - ID 1 is reserved by necs for NetworkId
const (
	SyncIDNetVehicle uint = 10
	SyncIDNetDriver  uint = 11
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterComponents registers all network components with necs for serialization.
// This must be called by both server and client before any network operations.
// Calling it again is a no-op.
//
// Neither component gets an esync interpolation function: observers
// dead-reckon karts from the whole VehicleState themselves.
func RegisterComponents() error {
	registerOnce.Do(func() { registerErr = registerComponents() })
	return registerErr
}

func registerComponents() error {
	if err := esync.RegisterComponent(
		SyncIDNetVehicle,
		netcomponents.NetVehicleData{},
		netcomponents.NetVehicle,
	); err != nil {
		return fmt.Errorf("register NetVehicle: %w", err)
	}

	if err := esync.RegisterComponent(
		SyncIDNetDriver,
		netcomponents.NetDriverData{},
		netcomponents.NetDriver,
	); err != nil {
		return fmt.Errorf("register NetDriver: %w", err)
	}

	return nil
}
