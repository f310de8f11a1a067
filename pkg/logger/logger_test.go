package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	restore := Replace(zap.NewNop())
	defer restore()

	require.NoError(t, Init(Options{Level: "debug", Format: "console"}))
	assert.True(t, L().Core().Enabled(zapcore.DebugLevel))

	require.NoError(t, Init(Options{Level: "warn", Format: "json"}))
	assert.False(t, L().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, L().Core().Enabled(zapcore.WarnLevel))

	assert.Error(t, Init(Options{Level: "loud"}))
}

func TestReplaceAndHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	Debug("d")
	Info("i", zap.String("k", "v"))
	Warn("w")
	Error("e")
	Named("worker").Info("named")

	require.Equal(t, 5, logs.Len())
	assert.Equal(t, "v", logs.All()[1].ContextMap()["k"])
	assert.Equal(t, "worker", logs.All()[4].LoggerName)
}

func TestSentryCoreLevels(t *testing.T) {
	c := NewSentryCore(zapcore.ErrorLevel)
	ce := c.Check(zapcore.Entry{Level: zapcore.WarnLevel}, nil)
	assert.Nil(t, ce)

	ce = c.Check(zapcore.Entry{Level: zapcore.ErrorLevel}, nil)
	assert.NotNil(t, ce)

	// 无 Sentry client 时写入为空操作
	assert.NoError(t, c.With([]zapcore.Field{zap.String("a", "b")}).Write(zapcore.Entry{Level: zapcore.ErrorLevel, Message: "boom"}, nil))
}

func TestSentryLevelMapping(t *testing.T) {
	assert.EqualValues(t, "fatal", sentryLevel(zapcore.FatalLevel))
	assert.EqualValues(t, "error", sentryLevel(zapcore.ErrorLevel))
	assert.EqualValues(t, "warning", sentryLevel(zapcore.WarnLevel))
	assert.EqualValues(t, "info", sentryLevel(zapcore.InfoLevel))
	assert.EqualValues(t, "debug", sentryLevel(zapcore.DebugLevel))
}
