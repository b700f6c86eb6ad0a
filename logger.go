package tessera

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hupe1980/tessera/model"
)

// Logger wraps slog.Logger with tessera-specific context.
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithArray adds the array URI to the logger.
func (l *Logger) WithArray(uri string) *Logger {
	return &Logger{
		Logger: l.Logger.With("array", uri),
	}
}

// LogCreate logs an array creation.
func (l *Logger) LogCreate(ctx context.Context, uri string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create array failed",
			"array", uri,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "array created",
			"array", uri,
		)
	}
}

// LogOpen logs a session open.
func (l *Logger) LogOpen(ctx context.Context, uri string, mode model.Mode, commit uint64, err error) {
	if err != nil {
		l.WarnContext(ctx, "open session failed",
			"array", uri,
			"mode", mode,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "session opened",
			"array", uri,
			"mode", mode,
			"commit", commit,
		)
	}
}

// LogWrite logs a subarray write.
func (l *Logger) LogWrite(ctx context.Context, uri string, region model.Region, attrs int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"array", uri,
			"region", region,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write completed",
			"array", uri,
			"region", region,
			"cells", region.NumCells(),
			"attributes", attrs,
		)
	}
}

// LogRead logs a subarray read.
func (l *Logger) LogRead(ctx context.Context, uri string, region model.Region, attrs []string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read failed",
			"array", uri,
			"region", region,
			"attributes", attrs,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "read completed",
			"array", uri,
			"region", region,
			"attributes", attrs,
		)
	}
}

// LogCommit logs the outcome of closing a write session.
func (l *Logger) LogCommit(ctx context.Context, uri string, commit uint64, tiles int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed",
			"array", uri,
			"tiles", tiles,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "commit published",
			"array", uri,
			"commit", commit,
			"tiles", tiles,
		)
	}
}
