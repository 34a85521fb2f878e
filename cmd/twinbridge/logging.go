package main

import (
	"log/slog"
	"os"
	"strings"
)

// setupLogger builds the process logger, mirroring the teacher's
// cmd/semstreams/logging.go: level/format parsed from flags, JSON by
// default, a fixed set of service-identifying attributes on every record.
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", "twinbridge",
		"version", Version,
		"pid", os.Getpid(),
	)
}
