// Package zaplog adapts uber-go/zap to the domain Logger interface.
package zaplog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// Logger is a zap-backed interfaces.Logger.
type Logger struct {
	zl *zap.Logger
}

// New builds a console logger writing to stderr. verbose lowers the level
// to debug.
func New(verbose bool) (*Logger, error) {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	zl, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{zl: zl}, nil
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.zl.Debug(msg, convert(fields)...)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.zl.Info(msg, convert(fields)...)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.zl.Warn(msg, convert(fields)...)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.zl.Error(msg, convert(fields)...)
}

// Sync flushes buffered entries. Called once at process exit.
func (l *Logger) Sync() {
	//nolint:errcheck // Stderr sync failures are not actionable
	_ = l.zl.Sync()
}

func convert(fields []interfaces.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
