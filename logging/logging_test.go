package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "debug", "json"))

	log := For("replication")
	log.Debug().Uint32("vehicle", 7).Msg("snap")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "replication", line["component"])
	assert.Equal(t, "snap", line["message"])
	assert.Equal(t, "debug", line["level"])
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "warn", "json"))

	log := For("server")
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetup_RejectsUnknownValues(t *testing.T) {
	assert.Error(t, Setup(&bytes.Buffer{}, "loud", "json"))
	assert.Error(t, Setup(&bytes.Buffer{}, "info", "xml"))
}
