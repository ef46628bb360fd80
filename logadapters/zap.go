// Package logadapters adapts third-party loggers to the changelog Logger interfaces.
package logadapters

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// ZapLogger implements changelog.Logger and changelog.ContextualLogger with a zap SugaredLogger.
// Arguments are key-value pairs like with slog; the context is not used by zap.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps an existing SugaredLogger.
func NewZapLogger(sugar *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{sugar: sugar}
}

// NewProductionZapLogger builds a JSON production logger at the given level ("debug", "info", "warn", "error").
func NewProductionZapLogger(level string) (*ZapLogger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = atomicLevel
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return NewZapLogger(logger.Sugar()), nil
}

func (l *ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

func (l *ZapLogger) DebugContext(_ context.Context, msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *ZapLogger) InfoContext(_ context.Context, msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *ZapLogger) WarnContext(_ context.Context, msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *ZapLogger) ErrorContext(_ context.Context, msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.sugar.Sync()
}

var (
	_ changelog.Logger           = (*ZapLogger)(nil)
	_ changelog.ContextualLogger = (*ZapLogger)(nil)
)
