package volcache

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/volcache/chunk"
)

// Logger wraps slog.Logger with volcache-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithLevel adds a level field to the logger.
func (l *Logger) WithLevel(level int) *Logger {
	return &Logger{
		Logger: l.Logger.With("level", level),
	}
}

// WithKey adds a chunk key field to the logger.
func (l *Logger) WithKey(key chunk.Key) *Logger {
	return &Logger{
		Logger: l.Logger.With("key", key.String()),
	}
}

// WithSource adds a source name field to the logger.
func (l *Logger) WithSource(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", name),
	}
}

// LogRegion logs a budgeted region request.
func (l *Logger) LogRegion(ctx context.Context, level, requested, ready int) {
	l.DebugContext(ctx, "region sampled",
		"level", level,
		"requested", requested,
		"ready", ready,
		"complete", requested == ready,
	)
}

// LogBlockingRegion logs a blocking region request.
func (l *Logger) LogBlockingRegion(ctx context.Context, level, chunks int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "blocking region failed",
			"level", level,
			"chunks", chunks,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "blocking region resolved",
			"level", level,
			"chunks", chunks,
		)
	}
}

// LogLoad logs the outcome of a single chunk request.
func (l *Logger) LogLoad(ctx context.Context, key chunk.Key, err error) {
	if err != nil {
		l.ErrorContext(ctx, "chunk load failed",
			"key", key.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "chunk loaded",
			"key", key.String(),
		)
	}
}
