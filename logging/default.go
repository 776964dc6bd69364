package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
)

// DefaultLogger writes "[LEVEL] msg: err map[fields]" lines through a standard
// library log.Logger. It is the global logger until SetGlobalLogger installs
// another backend.
type DefaultLogger struct {
	out    *log.Logger
	level  Level
	fields Fields
}

// NewDefaultLogger logs to stderr with timestamps, leaving stdout to data.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{
		out:    log.New(os.Stderr, "", log.LstdFlags),
		level:  InfoLevel,
		fields: make(Fields),
	}
}

// NewWriterLogger logs every level to w without timestamps.
func NewWriterLogger(w io.Writer) *DefaultLogger {
	return &DefaultLogger{
		out:    log.New(w, "", 0),
		level:  InfoLevel,
		fields: make(Fields),
	}
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level {
		return
	}

	line := fmt.Sprintf("[%s] %s", level, msg)
	if err != nil {
		line += fmt.Sprintf(": %v", err)
	}
	all := make(Fields, len(d.fields))
	maps.Copy(all, d.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}
	if len(all) > 0 {
		line += fmt.Sprintf(" %+v", all)
	}

	d.out.Println(line)
	if level == FatalLevel {
		os.Exit(1)
	}
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(d.fields)+len(fields))
	maps.Copy(merged, d.fields)
	maps.Copy(merged, fields)
	return &DefaultLogger{out: d.out, level: d.level, fields: merged}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}

// NoOpLogger discards everything; tests install it to keep output clean.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
