// Package logging builds the structured logger shared by all commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewWithWriter creates a text logger on w, which the CLI points at
// stderr so progress output on stdout stays clean. level is one of
// "debug", "info", "warn", "error" (default "info").
func NewWithWriter(w io.Writer, app, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler).With(
		slog.String("app", app),
		slog.Int("pid", os.Getpid()),
	)
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
