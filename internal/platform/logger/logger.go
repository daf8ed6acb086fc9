package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Level defaults to info;
// CULTIVAR_LOG_LEVEL=debug flips on verbose startup tracing.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CULTIVAR_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
