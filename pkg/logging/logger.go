// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache snapshot writes (path, entry count)
//   - Admission decisions per bucket
//
// Info: Normal operation events
//   - Served requests (HIT/MISS/STALE/FALLBACK with age)
//   - Snapshot loaded at startup
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Admission denied with no cached data
//   - Upstream 429 responses
//   - Fallback account engaged
//
// Error: Error conditions requiring attention
//   - Upstream errors and transport failures
//   - Snapshot persistence failures (service continues in-memory)
//   - Configuration errors
//
// Context Fields:
//   - rooftop: rooftop site identifier
//   - endpoint: upstream endpoint name (forecasts, estimated_actuals)
//   - cache: provenance of the served body (HIT, MISS, STALE, FALLBACK)
//   - age_secs: age of the served data in seconds
//   - account: upstream account used (primary, fallback)
//   - bucket: rate-limit bucket for admission decisions
//   - status: upstream HTTP status code
