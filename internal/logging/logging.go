// file: internal/logging/logging.go
// version: 1.0.0
// guid: 9a4c2e71-6d3b-4f58-a0e9-2b7d5c1f8e36

// Package logging builds the zerolog loggers used across the tool and tracks
// the lifecycle of long-running operations.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/rs/zerolog"
)

// Options configures a logger.
type Options struct {
	Level  string    `mapstructure:"level"`
	Format string    `mapstructure:"format"` // json or console
	Output io.Writer `mapstructure:"-"`
}

// New creates a logger writing to opts.Output, stderr by default.
func New(opts Options) (zerolog.Logger, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("%w: log level %q", failure.ErrInvalidConfig, opts.Level)
		}
		level = l
	}

	switch strings.ToLower(opts.Format) {
	case "", "json":
	case "console":
		out = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = out
			w.TimeFormat = time.Kitchen
		})
	default:
		return zerolog.Nop(), fmt.Errorf("%w: log format %q", failure.ErrInvalidConfig, opts.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// OperationLogger tracks the lifecycle of one named operation.
type OperationLogger struct {
	log   zerolog.Logger
	name  string
	start time.Time
}

// Operation starts tracking an operation and logs its start at debug level.
func Operation(log zerolog.Logger, name string) *OperationLogger {
	ol := &OperationLogger{
		log:   log.With().Str("operation", name).Logger(),
		name:  name,
		start: time.Now(),
	}
	ol.log.Debug().Msg("start")
	return ol
}

// Logger returns the operation-scoped logger.
func (ol *OperationLogger) Logger() *zerolog.Logger {
	return &ol.log
}

// Elapsed is the time since the operation started.
func (ol *OperationLogger) Elapsed() time.Duration {
	return time.Since(ol.start)
}

// Success logs completion with the operation's duration. fields may add
// context to the event.
func (ol *OperationLogger) Success(fields map[string]any) {
	ol.log.Info().Fields(fields).Dur("duration", ol.Elapsed()).Msgf("%s finished", ol.name)
}

// Failure logs err with the operation's duration.
func (ol *OperationLogger) Failure(err error) {
	ol.log.Error().Err(err).Str("kind", string(failure.KindOf(err))).Dur("duration", ol.Elapsed()).Msgf("%s failed", ol.name)
}
