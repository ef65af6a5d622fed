package netcomponents

import "github.com/yohamta/donburi"

// NetDriverData describes who is driving a kart.
type NetDriverData struct {
	Name      string
	Connected bool // false while the kart waits for its driver to reconnect
}

var NetDriver = donburi.NewComponentType[NetDriverData]()
