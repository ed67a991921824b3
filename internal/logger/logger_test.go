package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := New("prod", "warn", buf)
	require.NoError(t, err)

	l.Info().Msg("dropped")
	assert.Empty(t, buf.String(), "info is below the configured level")

	l.Warn().Int("room_id", 3).Msg("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "roamchat", entry["service"])
	assert.Equal(t, float64(3), entry["room_id"])
}

func TestNewDev(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := New(EnvDev, "", buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())

	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()), "dev output is not JSON")
}

func TestNewBadLevel(t *testing.T) {
	_, err := New("prod", "loud", &bytes.Buffer{})
	assert.Error(t, err)
}
