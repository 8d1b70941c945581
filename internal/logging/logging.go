// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level maps a verbosity count to a zerolog level:
// 0 warn, 1 info, 2 debug, 3+ trace.
func Level(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Setup configures the global logger to write human-readable lines to w.
// Extra writers (a log file) receive the same events as JSON.
func Setup(verbosity int, w io.Writer, extra ...io.Writer) {
	zerolog.SetGlobalLevel(Level(verbosity))

	console := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}
	writers := append([]io.Writer{console}, extra...)
	log.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()

	if verbosity >= 2 {
		log.Logger = log.Logger.With().Caller().Logger()
	}
}

// LogFilePath returns the log file location under the XDG state directory.
func LogFilePath() string {
	return filepath.Join(xdg.StateHome, "kiln", "kiln.log")
}

// OpenLogFile opens (creating parents) the log file in append mode.
func OpenLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// SetupFile is Setup with a JSON copy of every event appended to the log
// file at path. The caller closes the returned file when done.
func SetupFile(verbosity int, w io.Writer, path string) (io.Closer, error) {
	f, err := OpenLogFile(path)
	if err != nil {
		return nil, err
	}
	Setup(verbosity, w, f)
	return f, nil
}

// GetLogger returns a logger tagged with a component name.
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Discard is a logger that drops everything. Used as the default when a
// caller does not provide one.
func Discard() zerolog.Logger {
	return zerolog.Nop()
}

// LogOperationStart logs the start of an operation at debug level and
// returns a function that logs its completion with the elapsed time.
func LogOperationStart(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("operation started")
	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("operation completed")
	}
}
