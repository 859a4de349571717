// Package log provides the logger used across the traversal pipeline.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is the logging contract used by the traversal and the server.
type Logger interface {
	DebugContext(ctx context.Context, msg string, keysAndValues ...any)
	InfoContext(ctx context.Context, msg string, keysAndValues ...any)
	WarnContext(ctx context.Context, msg string, keysAndValues ...any)
	ErrorContext(ctx context.Context, msg string, keysAndValues ...any)
}

// NewLogger creates a new logger based on the provided format and level.
// Format is "standard" for human-readable text or "json" for structured
// output.
func NewLogger(format, level string, out, err io.Writer) (Logger, error) {
	switch strings.ToLower(format) {
	case "json":
		return newSlogLogger(out, err, level, func(w io.Writer, o *slog.HandlerOptions) slog.Handler {
			return slog.NewJSONHandler(w, o)
		})
	case "standard":
		return newSlogLogger(out, err, level, func(w io.Writer, o *slog.HandlerOptions) slog.Handler {
			return slog.NewTextHandler(w, o)
		})
	default:
		return nil, fmt.Errorf("logging format invalid: %s", format)
	}
}

// SeverityToLevel converts a severity name to a slog level.
func SeverityToLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.Level(0), fmt.Errorf("invalid log level: %s", s)
	}
}

type slogLogger struct {
	outLogger *slog.Logger
	errLogger *slog.Logger
}

func newSlogLogger(outW, errW io.Writer, level string, handler func(io.Writer, *slog.HandlerOptions) slog.Handler) (Logger, error) {
	slogLevel, err := SeverityToLevel(level)
	if err != nil {
		return nil, err
	}

	programLevel := new(slog.LevelVar)
	programLevel.Set(slogLevel)
	opts := &slog.HandlerOptions{Level: programLevel}

	return &slogLogger{
		outLogger: slog.New(handler(outW, opts)),
		errLogger: slog.New(handler(errW, opts)),
	}, nil
}

// DebugContext logs debug messages.
func (l *slogLogger) DebugContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.outLogger.DebugContext(ctx, msg, keysAndValues...)
}

// InfoContext logs informational messages.
func (l *slogLogger) InfoContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.outLogger.InfoContext(ctx, msg, keysAndValues...)
}

// WarnContext logs warning messages.
func (l *slogLogger) WarnContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.errLogger.WarnContext(ctx, msg, keysAndValues...)
}

// ErrorContext logs error messages.
func (l *slogLogger) ErrorContext(ctx context.Context, msg string, keysAndValues ...any) {
	l.errLogger.ErrorContext(ctx, msg, keysAndValues...)
}

// Discard returns a logger that drops everything. Used in tests and as
// the default when no logger is configured.
func Discard() Logger {
	return &slogLogger{
		outLogger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		errLogger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
