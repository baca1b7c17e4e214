// Package logger builds the process-wide slog logger for an environment.
package logger

import (
	"io"
	"log/slog"

	"github.com/magabrotheeeer/storytime-billing/internal/config"
)

// New returns a JSON logger at info level in prod and a debug text logger elsewhere.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case config.EnvProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
