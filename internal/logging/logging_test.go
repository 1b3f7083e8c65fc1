package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/ibexai/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(LogConfig{Level: "info", JSON: true, Out: &buf})

	componentLog := WithComponent(log, "market")
	componentLog.Info().Str("symbol", "SAN.MC").Msg("snapshot refreshed")
	log.Debug().Msg("dropped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "market", entry["component"])
	assert.Equal(t, "SAN.MC", entry["symbol"])
	assert.Equal(t, "snapshot refreshed", entry["message"])
}

func TestFromConfig(t *testing.T) {
	lc := FromConfig(config.LoggingConfig{Level: "debug", Format: "JSON", File: "/tmp/x.log", MaxSizeMB: 10})
	assert.True(t, lc.JSON)
	assert.Equal(t, "/tmp/x.log", lc.FilePath)
	assert.Equal(t, 10, lc.MaxSize)
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(LogConfig{JSON: true, Out: &buf})

	ctx := WithLogger(context.Background(), WithSession(log, "abc"))
	l := FromContext(ctx)
	l.Info().Msg("hello")
	assert.Contains(t, buf.String(), `"session":"abc"`)

	// no logger in context: must not panic
	nop := FromContext(context.Background())
	nop.Info().Msg("ignored")
}
