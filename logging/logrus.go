package logging

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// LogrusLogger backs Logger with a logrus entry.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger writes to w with the given formatter name ("json" or
// "text").
func NewLogrusLogger(w io.Writer, format string) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	}
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

// FromLogrus wraps an existing logrus logger.
func FromLogrus(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func merge(fields []Fields) logrus.Fields {
	out := logrus.Fields{}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

func (l *LogrusLogger) Debug(msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).Warn(msg)
}

func (l *LogrusLogger) Error(err error, msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).WithError(err).Error(msg)
}

func (l *LogrusLogger) Fatal(err error, msg string, fields ...Fields) {
	l.entry.WithFields(merge(fields)).WithError(err).Fatal(msg)
}

func (l *LogrusLogger) WithFields(fields Fields) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *LogrusLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return l.WithFields(fields)
	}
	return l
}

func (l *LogrusLogger) SetLevel(level Level) {
	l.entry.Logger.SetLevel(toLogrus(level))
}

func toLogrus(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case FatalLevel:
		return logrus.FatalLevel
	}
	return logrus.InfoLevel
}
