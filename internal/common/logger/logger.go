// internal/common/logger/logger.go
package logger

import (
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Logger is the logging surface the engine's components depend on. Fields
// travel as plain maps so call sites stay free of zap imports.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger
}

// New builds the root zap logger. Format is "json" for production or
// "console" for local development.
func New(levelStr, format string) *zap.Logger {
	var level zapcore.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	l, _ := cfg.Build()
	return l
}

// NewZapAdapter wraps an existing *zap.Logger behind the Logger interface.
func NewZapAdapter(l *zap.Logger) Logger {
	return &adapter{l: l}
}

// NewTestLogger routes log output through the test's t.Log.
func NewTestLogger(t testing.TB) Logger {
	return &adapter{l: zaptest.NewLogger(t)}
}

type adapter struct {
	l *zap.Logger
}

func (a *adapter) Debug(msg string, fields map[string]interface{}) {
	a.l.Debug(msg, toZapFields(fields)...)
}

func (a *adapter) Info(msg string, fields map[string]interface{}) {
	a.l.Info(msg, toZapFields(fields)...)
}

func (a *adapter) Warn(msg string, fields map[string]interface{}) {
	a.l.Warn(msg, toZapFields(fields)...)
}

func (a *adapter) Error(msg string, fields map[string]interface{}) {
	a.l.Error(msg, toZapFields(fields)...)
}

func (a *adapter) WithFields(fields map[string]interface{}) Logger {
	return &adapter{l: a.l.With(toZapFields(fields)...)}
}

func (a *adapter) WithError(err error) Logger {
	return &adapter{l: a.l.With(zap.Error(err))}
}

// toZapFields emits fields in key order so log lines are stable.
func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
