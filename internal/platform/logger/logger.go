// Package logger constructs the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New returns a text slog logger writing to stdout. Services and handlers
// receive it by injection so tests can discard output.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
