package memdisk

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with memdisk-specific context.
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDevice adds a device id field to the logger.
func (l *Logger) WithDevice(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("device", id),
	}
}

// LogCreate logs a device creation.
func (l *Logger) LogCreate(ctx context.Context, id int, capacity uint64, existed bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create failed",
			"device", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "create completed",
			"device", id,
			"capacity_sectors", capacity,
			"existed", existed,
		)
	}
}

// LogProbe logs an on-demand device resolution.
func (l *Logger) LogProbe(ctx context.Context, id int, created bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "probe failed",
			"device", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "probe completed",
			"device", id,
			"created", created,
		)
	}
}

// LogDestroy logs a device teardown.
func (l *Logger) LogDestroy(ctx context.Context, id int, pagesFreed uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "destroy failed",
			"device", id,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "destroy completed",
			"device", id,
			"pages_freed", pagesFreed,
		)
	}
}

// LogTransfer logs a whole-request transfer.
func (l *Logger) LogTransfer(ctx context.Context, id int, segments, completed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "transfer failed",
			"device", id,
			"segments", segments,
			"completed", completed,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "transfer completed",
			"device", id,
			"segments", segments,
		)
	}
}
