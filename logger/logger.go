// Package logger provides structured logging for Iris, backed by log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the interface for structured key-value logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// ParseLevel maps a LOG_LEVEL string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a JSON logger writing to stderr at the given level.
func New(level string) Logger {
	return FromSlog(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// NewText creates a text logger, useful for local development.
func NewText(w io.Writer, level string) Logger {
	if w == nil {
		w = os.Stderr
	}
	return FromSlog(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})))
}

// FromSlog wraps an existing slog.Logger.
func FromSlog(l *slog.Logger) Logger {
	return &slogLogger{logger: l}
}

// Noop returns a logger that discards everything.
func Noop() Logger {
	return &noopLogger{}
}
