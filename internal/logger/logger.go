package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger keeps the printf-style call sites used across the codebase while
// writing structured logrus entries underneath.
type Logger struct {
	entry *logrus.Entry
}

func New(level, format string) *Logger {
	return NewWriter(level, format, os.Stdout)
}

// NewWriter logs to w instead of stdout. The CLI uses it to keep stdout for
// command output.
func NewWriter(level, format string, w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)

	if format == "json" {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &Logger{entry: logrus.NewEntry(base)}
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	return &Logger{entry: logrus.NewEntry(base)}
}

// WithFields returns a child logger carrying the given fields.
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// WithField returns a child logger carrying one field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// Entry exposes the underlying logrus entry for middleware that logs fields directly.
func (l *Logger) Entry() *logrus.Entry {
	return l.entry
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.entry.Infof(msg, args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.entry.Debugf(msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.entry.Warnf(msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.entry.Errorf(msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.entry.Fatalf(msg, args...)
}
