// Package logging provides structured logging for the aof client,
// built on logrus so field-carrying log lines (volume id, op, error
// code) come for free instead of being hand-formatted.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus.Entry, so chained WithXxx calls accumulate
// fields the way the teacher's context-aware logger did.
type Logger struct {
	entry *logrus.Entry
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) toLogrus() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	Format string // "text" (default) or "json"
	Output io.Writer
	// Sync is accepted for API compatibility with callers that request
	// synchronous flushing; logrus always writes synchronously so this
	// is a no-op.
	Sync    bool
	NoColor bool
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{Level: LevelInfo, Format: "text", Output: os.Stderr}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(output)
	l.SetLevel(config.Level.toLogrus())
	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: config.NoColor})
	}
	return &Logger{entry: logrus.NewEntry(l)}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// WithVolume returns a child logger that tags every line with the
// volume id, the AoF-domain equivalent of the teacher's per-device
// context logger.
func (l *Logger) WithVolume(id uint64) *Logger {
	return &Logger{entry: l.entry.WithField("volume_id", id)}
}

// WithEntry returns a child logger tagging every line with an LMT key
// (volume id, SLBA), the AoF-domain equivalent of the teacher's
// per-queue context logger.
func (l *Logger) WithEntry(volID uint64, slba int64) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields{
		"volume_id": volID,
		"slba":      slba,
	})}
}

// WithOp returns a child logger tagging every line with an in-flight
// IO's offset and direction, the AoF-domain equivalent of the
// teacher's per-request (tag, op) context logger.
func (l *Logger) WithOp(offset int64, op string) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields{
		"offset": offset,
		"op":     op,
	})}
}

// WithError returns a child logger carrying err as a field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// fields turns alternating key/value pairs into logrus.Fields, mirroring
// the previous hand-rolled key=value formatter's calling convention.
func fields(args []any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

func (l *Logger) Debug(msg string, args ...any) { l.entry.WithFields(fields(args)).Debug(msg) }
func (l *Logger) Info(msg string, args ...any)   { l.entry.WithFields(fields(args)).Info(msg) }
func (l *Logger) Warn(msg string, args ...any)   { l.entry.WithFields(fields(args)).Warn(msg) }
func (l *Logger) Error(msg string, args ...any)  { l.entry.WithFields(fields(args)).Error(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

// Printf kept for compatibility with call sites written against the
// previous logger.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Global convenience functions.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
