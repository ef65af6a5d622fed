package trackdata

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCollisionData(t *testing.T) {
	data, err := LoadCollisionData(os.DirFS("testdata"), "oval.tmx")
	require.NoError(t, err)

	assert.Equal(t, "Test Oval", data.Name)
	assert.Equal(t, 512, data.MapWidth)
	assert.Equal(t, 384, data.MapHeight)

	// Border of an 8x6 map: two full rows plus two side tiles on each of the
	// four inner rows.
	assert.Len(t, data.SolidRects, 8*2+4*2)
	assert.Contains(t, data.SolidRects, SolidRect{X: 448, Y: 128, W: 64, H: 64})
	assert.NotContains(t, data.SolidRects, SolidRect{X: 64, Y: 64, W: 64, H: 64})

	require.Len(t, data.SpawnPoints, 2)
	assert.Equal(t, SpawnPoint{X: 128, Y: 192, Heading: 0, Index: 0}, data.SpawnPoints[0])
	assert.Equal(t, SpawnPoint{X: 320, Y: 192, Heading: 90, Index: 1}, data.SpawnPoints[1])
}

func TestLoadCollisionData_MissingFile(t *testing.T) {
	_, err := LoadCollisionData(os.DirFS("testdata"), "nope.tmx")
	assert.Error(t, err)
}

func TestLoadAllTracks(t *testing.T) {
	tracks, names, err := LoadAllTracks(os.DirFS("testdata"), ".")
	require.NoError(t, err)

	assert.Equal(t, []string{"oval"}, names)
	require.Contains(t, tracks, "oval")
	assert.Equal(t, "Test Oval", tracks["oval"].Name)
}

func TestLoadAllTracks_EmptyDir(t *testing.T) {
	_, _, err := LoadAllTracks(os.DirFS(t.TempDir()), ".")
	assert.Error(t, err)
}
