package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agentchat.log")
	logger, closer, err := New(Config{Level: "info", Path: path})
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Debug("hidden")
	logger.Info("turn sent", "autonomous", true)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "turn sent", entry["msg"])
	assert.Equal(t, true, entry["autonomous"])
}

func TestNewTextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentchat.log")
	logger, closer, err := New(Config{Format: "text", Path: path})
	require.NoError(t, err)
	logger.Warn("retrying")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=WARN")
	assert.Contains(t, string(data), "msg=retrying")
}

func TestEmptyPathDiscards(t *testing.T) {
	logger, closer, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.NotNil(t, logger)
}

func TestInitReplacesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentchat.log")
	require.NoError(t, Init(Config{Path: path}))
	t.Cleanup(func() { _ = Sync() })

	Named("session").Info("hello")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"session"`)
}
