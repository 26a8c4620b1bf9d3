package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(LogConfig{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info().Msg("dropped")
	doc := WithRunID(WithDocument(l, "a.pdf"), "run-1")
	doc.Warn().Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "a.pdf", entry["document"])
	assert.Equal(t, "run-1", entry["run_id"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(LogConfig{Level: "loud", Output: "stderr"})
	assert.Error(t, err)
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	l := WithFields(zerolog.New(&buf), map[string]interface{}{"page": 3})
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"page":3`)
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	l := WithComponent("stamp")
	l.Info().Msg("placed")
	assert.Contains(t, buf.String(), `"component":"stamp"`)
}
