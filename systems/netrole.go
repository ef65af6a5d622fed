package systems

import (
	"github.com/automoto/krazykarts-mp/components"
	"github.com/automoto/krazykarts-mp/replication"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// NewRoleDispatchSystem ticks every kart's actor once per ECS update with the
// strategy of its role. dt reports the step length in seconds.
func NewRoleDispatchSystem(d *replication.Dispatcher, dt func() float64) func(*ecs.ECS) {
	return func(e *ecs.ECS) {
		step := dt()
		components.Vehicle.Each(e.World, func(entry *donburi.Entry) {
			d.Tick(components.Vehicle.Get(entry).Actor, step)
		})
	}
}
