// Package logging provides the level+message capability the runtime reports
// through, and the slog plumbing used to build concrete sinks.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Level is the severity of a reported message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// SlogLevel maps l to its slog equivalent.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a level name. An empty string yields LevelInfo.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Logger is the minimal reporting capability consumed by the core.
type Logger interface {
	Log(level Level, msg string, args ...any)
}

// Func adapts a plain function to the Logger interface.
type Func func(level Level, msg string, args ...any)

// Log calls the underlying function.
func (f Func) Log(level Level, msg string, args ...any) {
	f(level, msg, args...)
}

type slogLogger struct {
	log *slog.Logger
}

// FromSlog adapts an slog.Logger to the Logger capability.
func FromSlog(log *slog.Logger) Logger {
	if log == nil {
		log = slog.Default()
	}

	return slogLogger{log: log}
}

func (s slogLogger) Log(level Level, msg string, args ...any) {
	s.log.Log(context.Background(), level.SlogLevel(), msg, args...)
}

// Discard returns a Logger that drops everything.
func Discard() Logger {
	return Func(func(Level, string, ...any) {})
}

// New builds an slog.Logger writing to w. format is "text" or "json";
// anything else falls back to text.
func New(w io.Writer, level Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Open creates an append-only file sink at path and returns a logger writing
// to it. The caller closes the returned io.Closer on exit.
func Open(path string, level Level, format string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path is operator configuration
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
	}

	return New(f, level, format), f, nil
}
