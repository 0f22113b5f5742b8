package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// settingsSource is implemented by *models.MConfig (and anything embedding it).
type settingsSource interface {
	GetLogLevel() string
	GetLogFormat() string
}

var (
	defaultsMu    sync.RWMutex
	defaultLevel  = "INFO"
	defaultFormat = "console"
)

var defaultOutput io.Writer = os.Stdout

// SetDefaults sets the level and format used by loggers created without a config.
func SetDefaults(level, format string) {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()
	if level != "" {
		defaultLevel = level
	}
	if format != "" {
		defaultFormat = format
	}
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name string
	zl   zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance
func NewLogger(config interface{}, name string) *Logger {
	defaultsMu.RLock()
	level, format, out := defaultLevel, defaultFormat, defaultOutput
	defaultsMu.RUnlock()

	if src, ok := config.(settingsSource); ok && src != nil {
		if l := src.GetLogLevel(); l != "" {
			level = l
		}
		if f := src.GetLogFormat(); f != "" {
			format = f
		}
	}

	return newWithWriter(out, name, level, format)
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger(name string) *Logger {
	return &Logger{name: name, zl: zerolog.Nop()}
}

func newWithWriter(out io.Writer, name, level, format string) *Logger {
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(out).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("component", name).
		Logger()
	return &Logger{name: name, zl: zl}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Name returns the component name attached to every line.
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.zl.Fatal().Msgf(format, args...)
}
