package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
		ok       bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, test := range tests {
		level, ok := ParseLevel(test.name)
		assert.Equal(t, test.expected, level, "ParseLevel(%q)", test.name)
		assert.Equal(t, test.ok, ok, "ParseLevel(%q) ok", test.name)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("task admitted", "user_id", int64(42))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "task admitted", entry["msg"])
	assert.Equal(t, float64(42), entry["user_id"])
}

func TestNew_TextAndInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "loud", "text")

	assert.Contains(t, buf.String(), "invalid log level configured")

	buf.Reset()
	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}
