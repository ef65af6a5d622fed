package trackdata

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/lafriks/go-tiled"
)

const (
	wallsLayer = "walls"
	spawnGroup = "KartSpawn"
)

// LoadCollisionData parses a TMX file and returns its walls and kart spawn
// points. It takes an fs.FS so callers can pass embed.FS or os.DirFS.
func LoadCollisionData(fsys fs.FS, tmxPath string) (*CollisionData, error) {
	trackMap, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", tmxPath, err)
	}

	data := &CollisionData{
		Name:      trackMap.Properties.GetString("name"),
		MapWidth:  trackMap.Width * trackMap.TileWidth,
		MapHeight: trackMap.Height * trackMap.TileHeight,
	}
	if data.Name == "" {
		data.Name = strings.TrimSuffix(path.Base(tmxPath), ".tmx")
	}

	tileW := float64(trackMap.TileWidth)
	tileH := float64(trackMap.TileHeight)
	for _, layer := range trackMap.Layers {
		if layer.Name != wallsLayer {
			continue
		}
		for y := 0; y < trackMap.Height; y++ {
			for x := 0; x < trackMap.Width; x++ {
				if layer.Tiles[y*trackMap.Width+x].IsNil() {
					continue
				}
				data.SolidRects = append(data.SolidRects, SolidRect{
					X: float64(x) * tileW,
					Y: float64(y) * tileH,
					W: tileW,
					H: tileH,
				})
			}
		}
		break
	}

	for _, og := range trackMap.ObjectGroups {
		if og.Name != spawnGroup {
			continue
		}
		for _, o := range og.Objects {
			data.SpawnPoints = append(data.SpawnPoints, SpawnPoint{
				X:       o.X + o.Width/2,
				Y:       o.Y + o.Height/2,
				Heading: o.Rotation,
				Index:   o.Properties.GetInt("spawnIndex"),
			})
		}
	}

	// Grid order
	sort.SliceStable(data.SpawnPoints, func(i, j int) bool {
		return data.SpawnPoints[i].Index < data.SpawnPoints[j].Index
	})

	return data, nil
}

// LoadAllTracks discovers all .tmx files in dir within fsys, loads each, and
// returns them keyed by file stem plus the sorted list of stems.
func LoadAllTracks(fsys fs.FS, dir string) (map[string]*CollisionData, []string, error) {
	pattern := path.Join(dir, "*.tmx")
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, nil, fmt.Errorf("no .tmx files found in %s", dir)
	}

	tracks := make(map[string]*CollisionData, len(matches))
	names := make([]string, 0, len(matches))

	for _, p := range matches {
		data, err := LoadCollisionData(fsys, p)
		if err != nil {
			return nil, nil, err
		}
		stem := strings.TrimSuffix(path.Base(p), ".tmx")
		tracks[stem] = data
		names = append(names, stem)
	}

	sort.Strings(names)
	return tracks, names, nil
}
