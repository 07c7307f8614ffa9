package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("botiquin-service", "production", &buf)

	log.WithComponent("sensor").WithHardwareID("BOT001").WithError(errors.New("boom")).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "botiquin-service", line["service"])
	assert.Equal(t, "sensor", line["component"])
	assert.Equal(t, "BOT001", line["hardware_id"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "hello", line["message"])
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("svc", "production", &buf)
	log.SetLevel("warn")

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
