package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/chazu/tlang/manifest"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the CLI logger: text on stderr, plus JSON lines
// appended to the configured log file. The returned closer releases the
// file and is never nil.
func newLogger(cfg *manifest.Manifest, verbose bool, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Log.Level))
	if verbose {
		level.Set(slog.LevelDebug)
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}),
	}

	var closer io.Closer = io.NopCloser(nil)
	if path := cfg.LogFilePath(); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}
