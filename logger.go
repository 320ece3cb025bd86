package dbpfindex

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with index-specific context.
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

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogBuild logs the outcome of a build pass.
func (l *Logger) LogBuild(ctx context.Context, r *BuildReport, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "build failed",
			"files", r.Files,
			"failed", len(r.Failed),
			"error", err,
		)
	case r.NothingToScan():
		l.InfoContext(ctx, "build found nothing to scan",
			"skipped", r.Skipped,
		)
	case len(r.Failed) > 0:
		l.WarnContext(ctx, "build completed with failures",
			"files", r.Files,
			"failed", len(r.Failed),
			"entries", r.Entries,
			"duration", r.Duration,
		)
	default:
		l.InfoContext(ctx, "build completed",
			"files", r.Files,
			"skipped", r.Skipped,
			"entries", r.Entries,
			"duration", r.Duration,
		)
	}
}

// LogSourceError logs a file that was left out of the index.
func (l *Logger) LogSourceError(ctx context.Context, err *SourceError) {
	l.WarnContext(ctx, "skipping source",
		"path", err.Path,
		"error", err.cause,
	)
}

// LogFamilies logs a family pass.
func (l *Logger) LogFamilies(ctx context.Context, r *FamilyReport, err error) {
	if err != nil {
		l.ErrorContext(ctx, "family pass failed", "error", err)
		return
	}
	l.InfoContext(ctx, "families built",
		"exemplars", r.Exemplars,
		"families", r.Families,
		"members", r.Members,
		"failed", len(r.Failed),
		"duration", r.Duration,
	)
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, bytes int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot "+op+" failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot "+op,
		"name", name,
		"bytes", bytes,
		"duration", d,
	)
}

// LogEviction logs a decoded payload dropped from the cache.
func (l *Logger) LogEviction(ctx context.Context, e *Entry, size int64) {
	l.DebugContext(ctx, "cache eviction",
		"tgi", e.TGI().String(),
		"size", size,
	)
}
