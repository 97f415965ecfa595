package logger

import (
	"log/slog"
	"strings"

	"github.com/dusted-go/logging/prettylog"
)

// Log is the process-wide logger. Defaults to info until Init runs.
var Log = slog.New(prettylog.NewHandler(&slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

func Init(level string) {
	Log = slog.New(prettylog.NewHandler(&slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
