package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFormatCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "Deribit", "INFO", "json")

	l.Info("fetched %d points", 365)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "Deribit", line["component"])
	assert.Equal(t, "fetched 365 points", line["message"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newWithWriter(&buf, "Analysis", "WARNING", "json")

	l.Debug("hidden")
	l.Info("hidden too")
	assert.Zero(t, buf.Len())

	l.Warning("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel_DefaultsToInfo(t *testing.T) {
	assert.Equal(t, parseLevel("INFO"), parseLevel(""))
	assert.Equal(t, parseLevel("INFO"), parseLevel("verbose"))
	assert.NotEqual(t, parseLevel("INFO"), parseLevel("debug"))
}
