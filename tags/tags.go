package tags

import "github.com/yohamta/donburi"

var (
	Kart = donburi.NewTag().SetName("Kart")
	// LocalKart marks the kart driven by this process.
	LocalKart = donburi.NewTag().SetName("LocalKart")
)

// Resolv tags for physics collision
const (
	ResolvSolid = "solid"
	ResolvKart  = "kart"
)
