// Package logging configures structured logging for both binaries.
//
// Usage:
//
//	logging.Setup()                                   // from LOG_LEVEL / LOG_FORMAT
//	logger := logging.New(logging.Options{Level: slog.LevelDebug})
//
// Environment variables:
//
//	LOG_LEVEL:  debug, info, warn, error (default: info)
//	LOG_FORMAT: text (coloured, via tint) or json (default: text)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options selects the handler built by New.
type Options struct {
	Level  slog.Level
	Format string    // "text" or "json"
	Writer io.Writer // defaults to os.Stderr
}

// Setup installs a default logger configured from the environment and returns it.
func Setup() *slog.Logger {
	logger := New(Options{
		Level:  ParseLevel(os.Getenv("LOG_LEVEL")),
		Format: os.Getenv("LOG_FORMAT"),
	})
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without touching the process default.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: true,
		}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
