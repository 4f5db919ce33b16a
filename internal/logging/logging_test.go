package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bulkimport/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_TextHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(config.Logging{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown", "line", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "line=3")
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(config.Logging{Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hello", "job", "people")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "people", rec["job"])
}

func TestNew_FileFanout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.jsonl")
	var buf bytes.Buffer
	logger, closeFn, err := New(config.Logging{Level: "debug", File: path}, &buf)
	require.NoError(t, err)

	logger.Debug("both", "n", 1)
	require.NoError(t, closeFn())

	assert.Contains(t, buf.String(), "msg=both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "both", rec["msg"])
	assert.Equal(t, float64(1), rec["n"])
}

func TestSetup_SetsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	_, _, err := Setup(config.Logging{}, &buf)
	require.NoError(t, err)
	slog.Info("via default")
	assert.Contains(t, buf.String(), "via default")
}
