package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a text or JSON logger. Unknown levels fall back to info.
func New(level string, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	lvl := new(slog.Level)
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		*lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
