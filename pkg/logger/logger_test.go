package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Format: FormatJSON, Output: &buf})

	log.Error(errors.New("boom"), "booking failed", "doctor_id", "d-1")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "booking failed", entry["message"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "d-1", entry["doctor_id"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: WarnLevel, Format: FormatJSON, Output: &buf})

	log.Info("hidden")
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
