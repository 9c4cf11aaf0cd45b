// Package logger provides the coordinator's structured logging: a
// swappable *slog.Logger backed by a colorized text handler for
// terminals, switchable to JSON for log aggregation.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlog() slog.Level {
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

func parseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	default:
		return 0, false
	}
}

// Config holds logger configuration, decoded from pkg/config.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// Logger wraps a *slog.Logger along with the writer/level/format axes
// it was built from, so SetLevel/SetFormat can rebuild it changing
// only one axis at a time.
type Logger struct {
	slog     *slog.Logger
	w        io.Writer
	useColor bool
	level    Level
	format   string
}

var active atomic.Pointer[Logger]

func init() {
	active.Store(newLogger(os.Stdout, isTerminal(os.Stdout.Fd()), LevelInfo, "text"))
}

func newLogger(w io.Writer, useColor bool, level Level, format string) *Logger {
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.toSlog())
	opts := &slog.HandlerOptions{Level: levelVar}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = NewColorTextHandler(w, opts, useColor)
	}
	return &Logger{slog: slog.New(h), w: w, useColor: useColor, level: level, format: format}
}

func current() *Logger {
	return active.Load()
}

// Init (re)builds the package-level logger from cfg. Output may be
// "stdout", "stderr", or a file path.
func Init(cfg Config) error {
	w, useColor, err := resolveOutput(cfg.Output)
	if err != nil {
		return err
	}

	level := current().level
	if cfg.Level != "" {
		if l, ok := parseLevel(cfg.Level); ok {
			level = l
		}
	}
	format := "text"
	if cfg.Format != "" {
		format = strings.ToLower(cfg.Format)
	}

	active.Store(newLogger(w, useColor, level, format))
	return nil
}

func resolveOutput(output string) (io.Writer, bool, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, false, fmt.Errorf("open log file %q: %w", output, err)
		}
		return f, false, nil
	}
}

// InitWithWriter points the logger at an arbitrary writer; used by tests.
func InitWithWriter(w io.Writer, level, format string, enableColor bool) {
	lvl := LevelInfo
	if l, ok := parseLevel(level); ok {
		lvl = l
	}
	if format == "" {
		format = "text"
	}
	active.Store(newLogger(w, enableColor, lvl, strings.ToLower(format)))
}

// SetLevel sets the minimum log level, preserving the current writer
// and format. Invalid values are ignored.
func SetLevel(level string) {
	l, ok := parseLevel(level)
	if !ok {
		return
	}
	cur := current()
	active.Store(newLogger(cur.w, cur.useColor, l, cur.format))
}

// SetFormat sets the output format ("text" or "json"), preserving the
// current writer and level. Invalid values are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	cur := current()
	active.Store(newLogger(cur.w, cur.useColor, cur.level, format))
}

// Debug logs at debug level: Debug("message", "key1", value1, ...).
func Debug(msg string, args ...any) {
	current().slog.Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	current().slog.Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	current().slog.Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	current().slog.Error(msg, args...)
}

// With returns a *slog.Logger with additional bound attributes.
func With(args ...any) *slog.Logger {
	return current().slog.With(args...)
}

// Duration returns the time since start, in milliseconds, for logging
// phase latencies.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
