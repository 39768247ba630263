package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName is stamped on every log line
const ServiceName = "crm-electoral-api"

// New creates a new zerolog logger with structured output.
// LOG_LEVEL picks the level; ENV=development or LOG_FORMAT=pretty switch to console output.
func New() zerolog.Logger {
	pretty := os.Getenv("ENV") == "development" || os.Getenv("LOG_FORMAT") == "pretty"
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"), pretty)
}

// NewWithWriter builds the service logger on an arbitrary writer
func NewWithWriter(out io.Writer, level string, pretty bool) zerolog.Logger {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339

	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(ParseLevel(level)).
			With().
			Timestamp().
			Caller().
			Str("service", ServiceName).
			Logger()
	}

	// JSON output for production
	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
}

// ParseLevel maps LOG_LEVEL values to zerolog levels, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
