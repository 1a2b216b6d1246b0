package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/subjugate/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg, zap.String("shard", "phoenix"))
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_LevelGatesOutput(t *testing.T) {
	cfg := config.LoggingConfig{Level: "warn", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestGuard_RecoversPanic(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	ok := Guard(logger, "npc_ai", func() { panic("boom") }, zap.Uint64("entity_id", 7))
	assert.False(t, ok)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "npc_ai", entry.ContextMap()["component"])
	assert.Equal(t, uint64(7), entry.ContextMap()["entity_id"])
}

func TestGuard_NoPanic(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ran := false
	ok := Guard(zap.New(core), "territory", func() { ran = true })
	assert.True(t, ok)
	assert.True(t, ran)
	assert.Zero(t, logs.Len())
}
