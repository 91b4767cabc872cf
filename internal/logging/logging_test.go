package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, closeFn, err := New(Config{Level: "warn", Out: &buf})
	require.NoError(t, err)
	defer closeFn()

	log.Info().Msg("hidden")
	log.Warn().Str("source", "engine").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"source":"engine"`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Config{Level: "chatty", Out: &buf})
	require.NoError(t, err)

	log.Debug().Msg("debug")
	log.Info().Msg("info")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "opsdeck.log")
	log, closeFn, err := New(Config{Level: "debug", File: path, Pretty: true})
	require.NoError(t, err)

	log.Debug().Msg("to file")
	closeFn()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
