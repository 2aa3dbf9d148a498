package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info", "json")
	log.Info("onboarding status", "attempt", "01J", "status", "started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "onboarding status", entry["msg"])
	assert.Equal(t, "01J", entry["attempt"])
	assert.Equal(t, "started", entry["status"])
}

func TestNewWriterTextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "parseLevel(%q)", tt.input)
	}
}

func TestOpenOutputStd(t *testing.T) {
	w, closer, err := openOutput("stdout")
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, os.Stdout, w)

	w, closer, err = openOutput("")
	require.NoError(t, err)
	defer closer()
	assert.Equal(t, os.Stderr, w)

	w, _, err = openOutput("discard")
	require.NoError(t, err)
	assert.Equal(t, io.Discard, w)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w3connect.log")
	log, closer, err := New(Options{Level: "debug", Format: "text", Output: path})
	require.NoError(t, err)
	log.Debug("written to file")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written to file"))
}

func TestNewBadOutput(t *testing.T) {
	_, _, err := New(Options{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.ErrorContains(t, err, "open log output")
}
