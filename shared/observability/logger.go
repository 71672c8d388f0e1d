// Package observability sets up logging, error capture and tracing.
package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a human-readable debug logger in development and a JSON
// logger everywhere else.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	var logger *slog.Logger

	switch env {
	case "development":
		logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	default:
		logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	return logger.With("service", "user-management")
}

// DiscardLogger is used where a logger is required but output is unwanted.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
