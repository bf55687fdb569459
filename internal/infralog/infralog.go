// Package infralog provides the bootstrap-level logger used by cmd/
// wiring (startup, shutdown, schema init). The domain packages (turn
// handling, planning, execution) do no logging of their own.
package infralog

import (
	"log/slog"
	"os"
	"strings"
)

// Setup creates and installs the process-wide slog default logger at
// the given level ("debug", "info", "warn", "error").
func Setup(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// Logger returns a default info-level logger without installing it.
func Logger() *slog.Logger {
	return Setup("info")
}
