package logger

import (
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// SentryCore forwards entries at or above its level to the current Sentry hub.
// It never writes anywhere else, so it is meant to be teed next to a regular core.
type SentryCore struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
}

// NewSentryCore returns a core enabled for lvl and above.
func NewSentryCore(lvl zapcore.LevelEnabler) *SentryCore {
	return &SentryCore{LevelEnabler: lvl}
}

func (c *SentryCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &SentryCore{LevelEnabler: c.LevelEnabler, fields: merged}
}

func (c *SentryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *SentryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return nil
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(ent.Level))
		if ent.LoggerName != "" {
			scope.SetTag("logger", ent.LoggerName)
		}
		for k, v := range enc.Fields {
			scope.SetExtra(k, v)
		}
		if ent.Stack != "" {
			scope.SetExtra("stacktrace", ent.Stack)
		}
		hub.CaptureMessage(ent.Message)
	})
	return nil
}

func (c *SentryCore) Sync() error { return nil }

func sentryLevel(l zapcore.Level) sentry.Level {
	switch {
	case l >= zapcore.FatalLevel:
		return sentry.LevelFatal
	case l >= zapcore.ErrorLevel:
		return sentry.LevelError
	case l == zapcore.WarnLevel:
		return sentry.LevelWarning
	case l == zapcore.InfoLevel:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
