// Package logging builds the process logger from the pipeline's logging
// section.
//
// Console output goes to the given writer in text or JSON. When a file is
// configured, every record is also fanned out to that file as JSON so runs
// leave a machine-readable trail next to the rejects file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bulkimport/internal/config"

	slogmulti "github.com/samber/slog-multi"
)

// New returns a logger for cfg writing to console, plus a close function for
// the log file (a no-op when none is configured).
func New(cfg config.Logging, console io.Writer) (*slog.Logger, func() error, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(console, opts)
	} else {
		handler = slog.NewTextHandler(console, opts)
	}

	closeFn := func() error { return nil }
	if path := strings.TrimSpace(cfg.File); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("log file dir: %w", err)
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handler = slogmulti.Fanout(handler, slog.NewJSONHandler(f, opts))
		closeFn = f.Close
	}
	return slog.New(handler), closeFn, nil
}

// Setup is New followed by slog.SetDefault.
func Setup(cfg config.Logging, console io.Writer) (*slog.Logger, func() error, error) {
	logger, closeFn, err := New(cfg, console)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

// ParseLevel converts a level name to slog.Level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
