// Package track turns parsed track data into a resolv collision space and
// gives each kart a body that sweeps through it.
package track

import (
	"fmt"
	"io/fs"
	"math"

	"github.com/automoto/krazykarts-mp/logging"
	"github.com/automoto/krazykarts-mp/shared/gamemath"
	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/automoto/krazykarts-mp/shared/trackdata"
	"github.com/automoto/krazykarts-mp/tags"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"
)

const cellSize = 16

// Track holds the collision space and spawn grid of one track.
type Track struct {
	ID          string // file stem, set by LoadAll
	Name        string
	Space       *resolv.Space
	SpawnPoints []trackdata.SpawnPoint
	MapWidth    int
	MapHeight   int
}

// New builds a resolv.Space from parsed collision data.
func New(data *trackdata.CollisionData) *Track {
	space := resolv.NewSpace(data.MapWidth, data.MapHeight, cellSize, cellSize)

	for _, r := range data.SolidRects {
		obj := resolv.NewObject(r.X, r.Y, r.W, r.H, tags.ResolvSolid)
		obj.SetShape(resolv.NewRectangle(0, 0, r.W, r.H))
		space.Add(obj)
	}

	log := logging.For("track")
	log.Info().
		Str("track", data.Name).
		Int("walls", len(data.SolidRects)).
		Int("spawns", len(data.SpawnPoints)).
		Msgf("loaded %dx%d track", data.MapWidth, data.MapHeight)

	return &Track{
		Name:        data.Name,
		Space:       space,
		SpawnPoints: data.SpawnPoints,
		MapWidth:    data.MapWidth,
		MapHeight:   data.MapHeight,
	}
}

// LoadAll loads all .tmx tracks in dir, keyed by file stem, plus the sorted
// stems.
func LoadAll(fsys fs.FS, dir string) (map[string]*Track, []string, error) {
	collision, names, err := trackdata.LoadAllTracks(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load all tracks: %w", err)
	}

	tracks := make(map[string]*Track, len(names))
	for _, name := range names {
		tr := New(collision[name])
		tr.ID = name
		tracks[name] = tr
	}
	return tracks, names, nil
}

// SpawnTransform returns the placement of grid slot i. Slots wrap around
// when there are more karts than spawn points.
func (t *Track) SpawnTransform(i int) kart.Transform {
	if len(t.SpawnPoints) == 0 {
		return kart.Transform{
			Position:    mgl64.Vec3{float64(t.MapWidth) / 2, float64(t.MapHeight) / 2, 0},
			Orientation: mgl64.QuatIdent(),
		}
	}
	sp := t.SpawnPoints[((i%len(t.SpawnPoints))+len(t.SpawnPoints))%len(t.SpawnPoints)]
	return kart.Transform{
		Position:    mgl64.Vec3{sp.X, sp.Y, 0},
		Orientation: gamemath.YawRotation(sp.Heading * math.Pi / 180),
	}
}

// NewBody adds a kart-sized object to the space at t.
func (t *Track) NewBody(at kart.Transform) *Body {
	obj := resolv.NewObject(0, 0, netconfig.KartSize, netconfig.KartSize, tags.ResolvKart)
	obj.SetShape(resolv.NewRectangle(0, 0, netconfig.KartSize, netconfig.KartSize))
	t.Space.Add(obj)

	b := &Body{space: t.Space, obj: obj}
	b.SetTransform(at)
	return b
}

// Body is a kart's presence in a Track. It implements the vehicle pose
// collaborator: the kart's transform is the centre of its collision square.
type Body struct {
	space *resolv.Space
	obj   *resolv.Object
	t     kart.Transform
}

func (b *Body) Transform() kart.Transform { return b.t }

func (b *Body) SetTransform(t kart.Transform) {
	b.t = t
	b.place(t.Position)
}

// Sweep moves the collision square from from by delta, one ground axis at a
// time, and stops each axis at the first wall. Z passes through unchanged.
// Only walls block; other karts do not.
func (b *Body) Sweep(from, delta mgl64.Vec3) (mgl64.Vec3, bool) {
	if b.obj == nil {
		return delta, false
	}
	b.place(from)
	moved := delta
	blocked := false

	if dx := delta.X(); dx != 0 {
		if check := b.obj.Check(dx, 0, tags.ResolvSolid); check != nil {
			if solids := check.ObjectsByTags(tags.ResolvSolid); len(solids) > 0 {
				moved[0] = check.ContactWithObject(solids[0]).X()
				blocked = true
			}
		}
		b.obj.X += moved[0]
		b.obj.Update()
	}

	if dy := delta.Y(); dy != 0 {
		if check := b.obj.Check(0, dy, tags.ResolvSolid); check != nil {
			if solids := check.ObjectsByTags(tags.ResolvSolid); len(solids) > 0 {
				moved[1] = check.ContactWithObject(solids[0]).Y()
				blocked = true
			}
		}
		b.obj.Y += moved[1]
		b.obj.Update()
	}

	return moved, blocked
}

// Remove takes the body out of the space.
func (b *Body) Remove() {
	if b.obj != nil {
		b.space.Remove(b.obj)
		b.obj = nil
	}
}

func (b *Body) place(p mgl64.Vec3) {
	if b.obj == nil {
		return
	}
	b.obj.X = p.X() - netconfig.KartSize/2
	b.obj.Y = p.Y() - netconfig.KartSize/2
	b.obj.Update()
}
