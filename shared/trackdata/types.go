// Package trackdata provides TMX track parsing shared between client and
// server. It has no dependencies on donburi or resolv, pure data only.
package trackdata

// CollisionData holds all collision-relevant data parsed from a TMX track.
// One tile pixel is one world unit.
type CollisionData struct {
	Name        string
	SolidRects  []SolidRect
	SpawnPoints []SpawnPoint
	MapWidth    int
	MapHeight   int
}

// SolidRect is a wall tile.
type SolidRect struct {
	X, Y, W, H float64
}

// SpawnPoint is a kart start position on the grid.
type SpawnPoint struct {
	X, Y    float64
	Heading float64 // degrees about the up axis
	Index   int
}
