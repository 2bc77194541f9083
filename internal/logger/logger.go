// Package logger provides structured logging for the seguimientos service.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with service-specific helpers.
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output for development
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a configured level name to a zerolog level. Unknown names
// fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New creates a structured logger.
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "seguimientos").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Zerolog returns the underlying zerolog logger.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zlog
}

// Info starts an info event.
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Debug starts a debug event.
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Warn starts a warning event.
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Error starts an error event.
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// WithContext returns the request logger stored in ctx by the HTTP
// middleware, or l when there is none.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if zl := zerolog.Ctx(ctx); zl != nil && zl.GetLevel() != zerolog.Disabled {
		return &Logger{zlog: *zl}
	}
	return l
}

// Component returns a logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// LogStoreOperation logs a storage call. Failures log at error level, the
// rest at debug.
func (l *Logger) LogStoreOperation(operation, document string, duration time.Duration, err error) {
	var event *zerolog.Event
	if err != nil {
		event = l.zlog.Error().Err(err)
	} else {
		event = l.zlog.Debug()
	}
	event.
		Str("component", "storage").
		Str("operation", operation).
		Str("document", document).
		Dur("duration_ms", duration).
		Msg("storage operation completed")
}

// LogServerStart logs server startup.
func (l *Logger) LogServerStart(addr, dataDir, basePath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Str("addr", addr).
		Str("data_dir", dataDir).
		Str("base_path", basePath).
		Msg("seguimientos server starting")
}

// LogServerShutdown logs server shutdown.
func (l *Logger) LogServerShutdown(reason string) {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Str("reason", reason).
		Msg("seguimientos server shutting down")
}
