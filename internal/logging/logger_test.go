package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"trace":   zerolog.TraceLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		require.Equal(t, want, parseLevel(in), in)
	}
}

func TestInitJSONWithFile(t *testing.T) {
	t.Cleanup(func() { Init(DefaultConfig()) })

	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "threadline.log")
	Init(Config{Level: "debug", Format: "json", Output: &buf, File: file})

	logger := WithThread("engine-1", "42")
	logger.Debug().Msg("walked")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "engine-1", entry["thread_id"])
	require.Equal(t, "42", entry["post_id"])
	require.Equal(t, "walked", entry["message"])

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "walked")
	require.Contains(t, string(data), "thread_id=engine-1")
}

func TestInitRespectsLevel(t *testing.T) {
	t.Cleanup(func() { Init(DefaultConfig()) })

	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	logger := Component("store")
	logger.Info().Msg("hidden")
	require.Empty(t, buf.String())
	logger.Warn().Msg("shown")
	require.Contains(t, buf.String(), `"component":"store"`)
}

func TestFromContext(t *testing.T) {
	t.Cleanup(func() { Init(DefaultConfig()) })

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})

	fallback := FromContext(context.Background())
	fallback.Info().Msg("global")
	require.NotContains(t, buf.String(), "command")

	buf.Reset()
	ctx := WithContext(context.Background(), Component("cli").With().Str("command", "thread").Logger())
	logger := FromContext(ctx)
	logger.Info().Msg("scoped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "cli", entry["component"])
	require.Equal(t, "thread", entry["command"])
}
