package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Level defaults to info;
// set RECLINK_LOG_LEVEL=debug for verbose matching output.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("RECLINK_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
