// Package netconfig defines lightweight constants shared between client and
// server. It must have zero dependencies on the rest of the module so both
// binaries agree on units and defaults.
package netconfig

// World conventions. The simulation works in meters and seconds; positions
// are stored in world units.
const (
	// UnitsPerMeter converts meters into the world's distance unit (cm).
	UnitsPerMeter = 100.0

	// DefaultGravity is the world gravity magnitude in m/s².
	DefaultGravity = 9.81

	// IntervalEpsilon is the smallest gap between two authoritative snapshots
	// that interpolation accepts. Anything shorter is a degenerate interval.
	IntervalEpsilon = 1e-4
)

// Server defaults.
const (
	DefaultPort        = 7373
	DefaultTickRate    = 30
	DefaultMaxPlayers  = 8
	DefaultMovesPerSec = 120
)

// KartSize is the side of a kart's collision square in world units. The
// square is axis aligned and does not turn with the kart.
const KartSize = 120.0

// Protocol limits.
const (
	MaxPacketSize       = 4096
	PredictionQueueSize = 256
)
