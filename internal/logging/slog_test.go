package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_TextDestination(t *testing.T) {
	t.Run("file wins over console", func(t *testing.T) {
		var file, console bytes.Buffer
		m := NewSlogManager()
		m.Setup(Options{File: &file, Console: &console})
		m.Logger().Info("turn advanced")

		assert.Contains(t, file.String(), "turn advanced")
		assert.Empty(t, console.String())
	})
	t.Run("console without file", func(t *testing.T) {
		var console bytes.Buffer
		m := NewSlogManager()
		m.Setup(Options{Console: &console})
		m.Logger().Info("turn advanced")

		assert.Contains(t, console.String(), "turn advanced")
	})
}

func TestSetup_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"WARN", false, false},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(Options{File: &buf, Level: tt.level})
			m.Logger().Debug("seat scanned")
			m.Logger().Info("goal met")

			assert.Equal(t, tt.wantDebug, strings.Contains(buf.String(), "seat scanned"))
			assert.Equal(t, tt.wantInfo, strings.Contains(buf.String(), "goal met"))
		})
	}
}

func TestSetup_TimeIsUTC(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf})
	assert.Regexp(t, `time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z `, buf.String())
}

func TestSetup_AgainSwitchesOutput(t *testing.T) {
	var before, after bytes.Buffer
	m := NewSlogManager()

	m.Setup(Options{File: &before})
	m.Logger().Info("first session")
	m.Setup(Options{File: &after})
	m.Logger().Info("second session")

	assert.Contains(t, before.String(), "first session")
	assert.NotContains(t, before.String(), "second session")
	assert.Contains(t, after.String(), "second session")
}

func TestSetup_ContextEvaluatedPerRecord(t *testing.T) {
	var buf bytes.Buffer
	turn := 0
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Context: func() []slog.Attr {
		return []slog.Attr{slog.String("session", "lair"), slog.Int("turn", turn)}
	}})

	turn = 12
	m.Logger().Info("turn done")
	assert.Contains(t, buf.String(), "session=lair turn=12")
}

func TestSetup_Graylog(t *testing.T) {
	gl := &fakeGelf{}
	m := NewSlogManager()
	m.Setup(Options{File: &bytes.Buffer{}, Graylog: gl, Service: "keeperd"})

	m.Logger().Warn("seat dropped", "seatId", 3)

	require.Len(t, gl.messages, 2)
	msg := gl.messages[1]
	assert.Equal(t, "seat dropped", msg.Short)
	assert.Equal(t, "keeperd", msg.Facility)
	assert.Equal(t, int32(4), msg.Level)
	assert.Equal(t, int64(3), msg.Extra["_seatId"])
}

func TestSetup_GraylogDefaultService(t *testing.T) {
	gl := &fakeGelf{}
	m := NewSlogManager()
	m.Setup(Options{File: &bytes.Buffer{}, Graylog: gl})
	require.NotEmpty(t, gl.messages)
	assert.Equal(t, "keeper", gl.messages[0].Facility)
}

func TestSetup_OTelProviderFlushes(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer provider.Shutdown(context.Background())

	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(Options{File: &buf, Provider: provider})
	m.Logger().Info("bridged")

	assert.Contains(t, buf.String(), "bridged")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestManager_BeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Same(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	} {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
