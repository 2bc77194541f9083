package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m), "line %s", line)
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNewAddsServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})

	l.Info().Str("k", "v").Msg("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "seguimientos", lines[0]["service"])
	assert.Equal(t, "hello", lines[0]["message"])
	assert.Equal(t, "v", lines[0]["k"])
	assert.Contains(t, lines[0], "time")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Output: &buf})

	l.Info().Msg("dropped")
	l.Debug().Msg("dropped")
	l.Warn().Msg("kept")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["message"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf}).Component("http")

	l.Info().Msg("x")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "http", lines[0]["component"])
}

func TestLogStoreOperation(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf})

	l.LogStoreOperation("save_record", "2024-01_user7", 5*time.Millisecond, nil)
	l.LogStoreOperation("save_record", "2024-01_user7", time.Millisecond, errors.New("disk full"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "save_record", lines[0]["operation"])
	assert.Equal(t, "2024-01_user7", lines[0]["document"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "disk full", lines[1]["error"])
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error().Msg("nothing")
	assert.Equal(t, zerolog.Disabled, l.Zerolog().GetLevel())
}

func TestWithContext(t *testing.T) {
	var base, req bytes.Buffer
	l := New(Config{Output: &base})

	assert.Same(t, l, l.WithContext(context.Background()))

	reqLogger := zerolog.New(&req).With().Str("request_id", "r1").Logger()
	ctx := reqLogger.WithContext(context.Background())
	l.WithContext(ctx).Info().Msg("scoped")

	assert.Empty(t, base.String())
	lines := decodeLines(t, &req)
	require.Len(t, lines, 1)
	assert.Equal(t, "r1", lines[0]["request_id"])
}
