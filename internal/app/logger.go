package app

import (
	"io"
	"log/slog"
)

// newLogger builds the application logger from cfg. The global logger is
// left untouched so several apps can run side by side in tests.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level < slog.LevelInfo && cfg.LogFormat == "json",
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("app", "cleangrid")
}
