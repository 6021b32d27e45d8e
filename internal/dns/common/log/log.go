package log

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const appName = "rr-blocklist"

var global Logger = newZapLogger(false, zapcore.InfoLevel) // default to prod/info

// SetLogger replaces the global logger instance.
// Useful for testing or overriding behavior.
func SetLogger(l Logger) {
	global = l
}

// GetLogger returns the current global logger instance.
func GetLogger() Logger {
	return global
}

// Logger defines the logging interface shared by every component.
// Fields are rendered as structured key/value pairs.
type Logger interface {
	Info(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Debug(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

// Configure sets up the global logger based on env and level.
// "prod" selects the JSON encoder, anything else the colored console encoder.
func Configure(env, level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	global = newZapLogger(env != "prod", lvl)
	return nil
}

// Sync flushes any buffered entries of the global logger.
// Loggers that do not buffer are a no-op.
func Sync() {
	if s, ok := global.(interface{ sync() error }); ok {
		_ = s.sync()
	}
}

func Info(fields map[string]any, msg string)  { global.Info(fields, msg) }
func Error(fields map[string]any, msg string) { global.Error(fields, msg) }
func Debug(fields map[string]any, msg string) { global.Debug(fields, msg) }
func Warn(fields map[string]any, msg string)  { global.Warn(fields, msg) }
func Panic(fields map[string]any, msg string) { global.Panic(fields, msg) }
func Fatal(fields map[string]any, msg string) { global.Fatal(fields, msg) }

// zapLogger implements Logger using Uber's zap.
type zapLogger struct {
	base *zap.Logger
}

func newZapLogger(dev bool, level zapcore.Level) Logger {
	var config zap.Config
	if dev {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// progress lines are emitted in bursts; keep all of them
		config.Sampling = nil
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.MessageKey = "msg"
	config.EncoderConfig.LevelKey = "level"

	logger, err := config.Build()
	if err != nil {
		return &noopLogger{}
	}
	return &zapLogger{base: logger.Named(appName)}
}

func (l *zapLogger) Info(fields map[string]any, msg string) {
	l.base.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(fields map[string]any, msg string) {
	l.base.Error(msg, zapFields(fields)...)
}

func (l *zapLogger) Debug(fields map[string]any, msg string) {
	l.base.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(fields map[string]any, msg string) {
	l.base.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Panic(fields map[string]any, msg string) {
	l.base.Panic(msg, zapFields(fields)...)
}

func (l *zapLogger) Fatal(fields map[string]any, msg string) {
	l.base.Fatal(msg, zapFields(fields)...)
}

func (l *zapLogger) sync() error {
	return l.base.Sync()
}

// zapFields converts a field map to zap fields in key order, so repeated
// progress lines line up column for column.
func zapFields(m map[string]any) []zap.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(m))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, m[k]))
	}
	return fields
}

// noopLogger is a Logger implementation that discards all log messages.
type noopLogger struct{}

func (n *noopLogger) Info(map[string]any, string)  {}
func (n *noopLogger) Error(map[string]any, string) {}
func (n *noopLogger) Debug(map[string]any, string) {}
func (n *noopLogger) Warn(map[string]any, string)  {}
func (n *noopLogger) Panic(map[string]any, string) {}
func (n *noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards all log messages.
func NewNoopLogger() Logger {
	return &noopLogger{}
}
