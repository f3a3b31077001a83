package logging

import (
	"io"
	"log/slog"
	"os"
)

var (
	// Logger is the process-wide structured logger. Components derive
	// their own through Component.
	Logger *slog.Logger

	level = new(slog.LevelVar)
)

func init() {
	Logger = slog.New(newHandler(os.Stderr, false))
}

func newHandler(w io.Writer, jsonOutput bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup points the logger at w (stderr when nil), in text or JSON, at debug
// level when verbose and info level otherwise.
func Setup(verbose bool, jsonOutput bool, w io.Writer) {
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	if w == nil {
		w = os.Stderr
	}
	Logger = slog.New(newHandler(w, jsonOutput))
}

// Verbose reports whether debug records are currently emitted.
func Verbose() bool {
	return level.Level() <= slog.LevelDebug
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// Component returns a logger tagged with the component name. Components call
// it at use time rather than caching the result so that a later Setup takes
// effect.
func Component(name string) *slog.Logger {
	return Logger.With("component", name)
}

// Discard returns a logger that drops everything, for tests and callers that
// opt out of logging.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
