// Package log configures the process-wide slog default shared by the API
// and sweeper binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default text logger at the given level. Level names
// are case-insensitive ("debug", "info", "warn", "error"); anything
// unrecognized falls back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns the default logger tagged with a module field.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
