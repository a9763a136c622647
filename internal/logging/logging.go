// Package logging provides the structured logger used across the cart service.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields carries structured key/value pairs for a log entry.
type Fields map[string]interface{}

// LoggerV2 is a named, structured logger backed by zap.
type LoggerV2 struct {
	zl *zap.Logger
}

var base = newBase()

func newBase() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFromEnv())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: falling back to nop logger: %v\n", err)
		return zap.NewNop()
	}
	return zl
}

func levelFromEnv() zapcore.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLoggerV2 creates a logger tagged with the given component name.
func NewLoggerV2(component string) *LoggerV2 {
	return &LoggerV2{zl: base.With(zap.String("component", component))}
}

// NewNop returns a logger that discards everything.
func NewNop() *LoggerV2 {
	return &LoggerV2{zl: zap.NewNop()}
}

// New wraps an existing zap logger.
func New(zl *zap.Logger) *LoggerV2 {
	return &LoggerV2{zl: zl}
}

// With returns a child logger that always carries the given fields.
func (l *LoggerV2) With(fields Fields) *LoggerV2 {
	return &LoggerV2{zl: l.zap().With(toZap(fields)...)}
}

func (l *LoggerV2) Debug(msg string, fields ...Fields) {
	l.zap().Debug(msg, merge(fields)...)
}

func (l *LoggerV2) Info(msg string, fields ...Fields) {
	l.zap().Info(msg, merge(fields)...)
}

func (l *LoggerV2) Warn(msg string, fields ...Fields) {
	l.zap().Warn(msg, merge(fields)...)
}

func (l *LoggerV2) Error(msg string, fields ...Fields) {
	l.zap().Error(msg, merge(fields)...)
}

// Fatal logs and exits the process.
func (l *LoggerV2) Fatal(msg string, fields ...Fields) {
	l.zap().Fatal(msg, merge(fields)...)
}

// Sync flushes buffered entries.
func (l *LoggerV2) Sync() error {
	return l.zap().Sync()
}

func (l *LoggerV2) zap() *zap.Logger {
	if l == nil || l.zl == nil {
		return zap.NewNop()
	}
	return l.zl
}

// Infof logs an unstructured message through the base logger.
func Infof(format string, args ...interface{}) {
	base.Sugar().Infof(format, args...)
}

func merge(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields[0]))
	for _, f := range fields {
		out = append(out, toZap(f)...)
	}
	return out
}

func toZap(fields Fields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
