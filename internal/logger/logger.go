// Package logger wraps zerolog with the conventions used across txlog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger with module helpers.
type Logger struct {
	zerolog.Logger
}

// New creates a logger writing to stderr. Unknown levels fall back to info.
// The level is also applied globally.
func New(level string, pretty bool) *Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out, level)
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	zerolog.SetGlobalLevel(ParseLevel(level))
	return &Logger{zerolog.New(w).With().Timestamp().Logger()}
}

// ParseLevel parses a level name case-insensitively, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Module returns a child logger tagged with module name.
func (l *Logger) Module(name string) *Logger {
	return &Logger{l.With().Str("module", name).Logger()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}
