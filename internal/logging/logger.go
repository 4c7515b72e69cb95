// Package logging wraps zerolog behind the printf-style API used across
// afipws. Values wrapped in Secret never reach the output in clear text.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging with redaction support
type Logger struct {
	zl      zerolog.Logger
	debug   bool
	noColor bool
}

// New creates a logger writing human readable lines to stderr
func New(debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a console logger writing to w
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}

	return &Logger{
		zl:      zerolog.New(out).Level(level).With().Timestamp().Logger(),
		debug:   debug,
		noColor: noColor,
	}
}

// NewJSON creates a logger emitting one JSON object per line, for log shippers
func NewJSON(w io.Writer, debug bool) *Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return &Logger{
		zl:      zerolog.New(w).Level(level).With().Timestamp().Logger(),
		debug:   debug,
		noColor: true,
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), noColor: true}
}

// With returns a child logger that adds key=value to every line
func (l *Logger) With(key string, value interface{}) *Logger {
	if l == nil {
		return Nop()
	}
	child := *l
	child.zl = l.zl.With().Interface(key, value).Logger()
	return &child
}

// WithDebug returns a copy of l that also emits debug lines
func (l *Logger) WithDebug() *Logger {
	if l == nil {
		return Nop()
	}
	child := *l
	child.zl = l.zl.Level(zerolog.DebugLevel)
	child.debug = true
	return &child
}

// IsDebug reports whether debug lines are emitted
func (l *Logger) IsDebug() bool {
	return l != nil && l.debug
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Warn().Msgf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Error().Msgf(format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.zl.Debug().Msgf(format, args...)
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// MarshalJSON keeps secrets out of structured fields as well
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
