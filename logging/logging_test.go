package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-pipe/logging"
)

func TestDefaultLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewWriterLogger(&buf)

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.WithFields(logging.Fields{"component": "iir"}).Info("entered", logging.Fields{"sections": 2})
	out := buf.String()
	assert.Contains(t, out, "[INFO] entered")
	assert.Contains(t, out, "component:iir")
	assert.Contains(t, out, "sections:2")

	buf.Reset()
	l.SetLevel(logging.ErrorLevel)
	l.Warn("dropped")
	assert.Empty(t, buf.String())
	l.Error(errors.New("boom"), "failed")
	assert.Contains(t, buf.String(), "[ERROR] failed: boom")
	assert.NotContains(t, buf.String(), "\033[")
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewWriterLogger(&buf)
	ctx := logging.ContextWithFields(context.Background(), logging.Fields{"run": 7})
	l.WithContext(ctx).Info("step")
	assert.Contains(t, buf.String(), "run:7")
}

func TestLogrusJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logging.NewLogrusLogger(&buf, "json")
	l.WithFields(logging.Fields{"component": "driver"}).Info("flushed", logging.Fields{"steps": 3})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "flushed", entry["msg"])
	assert.Equal(t, "driver", entry["component"])
	assert.Equal(t, 3.0, entry["steps"])

	buf.Reset()
	l.SetLevel(logging.WarnLevel)
	l.Info("quiet")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	l, ok := logging.ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, logging.DebugLevel, l)
	l, ok = logging.ParseLevel("WARNING")
	assert.True(t, ok)
	assert.Equal(t, logging.WarnLevel, l)
	_, ok = logging.ParseLevel("loud")
	assert.False(t, ok)
}
