package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*DispatcherLogger)
		level string
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("queued", "command", ":TURN:SNAPSHOT:", "size", 3) }, "debug"},
		{"info", func(l *DispatcherLogger) { l.Info("queued", "command", ":TURN:SNAPSHOT:", "size", 3) }, "info"},
		{"error", func(l *DispatcherLogger) { l.Error("queued", "command", ":TURN:SNAPSHOT:", "size", 3) }, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewDispatcherLogger(NewZerolog(&buf, "debug", "dispatcher"))
			tt.log(l)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "queued", entry["message"])
			assert.Equal(t, ":TURN:SNAPSHOT:", entry["command"])
			assert.Equal(t, float64(3), entry["size"])
			assert.Equal(t, "dispatcher", entry["component"])
		})
	}
}

func TestNewZerolog_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(NewZerolog(&buf, "WARN", "storage"))
	l.Info("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	l = NewDispatcherLogger(NewZerolog(&buf, "bogus", "storage"))
	l.Debug("hidden")
	l.Info("shown")
	assert.Contains(t, buf.String(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestDispatcherLogger_Pairs(t *testing.T) {
	var buf bytes.Buffer
	l := NewDispatcherLogger(NewZerolog(&buf, "debug", "dispatcher"))
	l.Error("event failed", "error", errors.New("influx down"), 7, "seven", "duration", 1500*time.Millisecond, "dangling")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "influx down", entry["error"])
	assert.Equal(t, "seven", entry["7"])
	assert.Equal(t, float64(1500), entry["duration"])
	assert.NotContains(t, entry, "dangling")
}
