package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, l)

	l, err = ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_ConsoleThreshold(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "debug", Console: &buf, ConsoleLevel: "warn"})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestNew_FileReceivesJSON(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "aksmigrate.log")
	log, closer, err := New(Options{Level: "info", Console: &console, ConsoleLevel: "error", File: path})
	require.NoError(t, err)

	log.Info().Str("step", "setup").Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"step":"setup"`)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.Empty(t, console.String())
}

func TestNew_NoWriters(t *testing.T) {
	log, closer, err := New(Options{})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	log.Info().Msg("dropped")
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(Options{Level: "nope"})
	assert.Error(t, err)
}
