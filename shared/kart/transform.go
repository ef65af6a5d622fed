package kart

import "github.com/go-gl/mathgl/mgl64"

// Transform is a kart's placement in the world. Position is in world units.
type Transform struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// IdentityTransform is the transform of a kart before a spawn point is applied.
func IdentityTransform() Transform {
	return Transform{Orientation: mgl64.QuatIdent()}
}
