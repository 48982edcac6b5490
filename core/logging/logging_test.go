package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", "json", &buf)
	require.NoError(t, err)

	log.Debug().Str("patient_id", "p1").Msg("record stored")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "record stored", line["message"])
	assert.Equal(t, "p1", line["patient_id"])
	assert.Equal(t, "iyacare", line["service"])
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "", &buf)
	require.NoError(t, err)
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("", "console", &buf)
	require.NoError(t, err)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNewBadLevel(t *testing.T) {
	_, err := New("loud", "json", &bytes.Buffer{})
	require.Error(t, err)
}
