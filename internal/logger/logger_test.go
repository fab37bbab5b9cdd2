package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	log.Info().Str("table", "users").Msg("reflected table")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "reflected table", entry["message"])
	assert.Equal(t, "users", entry["table"])
	assert.NotEmpty(t, entry["time"])
}

func TestNew_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "warn", Format: "json", Output: buf})

	log.Debug().Msg("debug")
	log.Info().Msg("info")
	assert.Empty(t, buf.String())

	log.Warn().Msg("warn")
	assert.Contains(t, buf.String(), `"message":"warn"`)
}

func TestNew_ConsoleOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "debug", Format: "console", Output: buf})

	log.Debug().Str("namespace", "public").Msg("listed base tables")

	out := buf.String()
	assert.Contains(t, out, "listed base tables")
	assert.Contains(t, out, "namespace=public")
	assert.NotContains(t, out, "\x1b[", "non-terminal output must not be colored")
}

func TestNew_DefaultConfig(t *testing.T) {
	log := New(nil)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info().Msg("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())
}
