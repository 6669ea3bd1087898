package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	s := NewService(Dependencies{
		Session:       "lair",
		Turn:          func() int64 { return 12 },
		PendingWrites: func() int { return 3 },
		Mirrors:       func() int { return 2 },
	})

	st := s.Sample()
	assert.Equal(t, "lair", st.Session)
	assert.Equal(t, int64(12), st.Turn)
	assert.Equal(t, 3, st.PendingWrites)
	assert.Equal(t, 2, st.Mirrors)
	assert.False(t, st.Time.IsZero())
}

func TestSample_NoSources(t *testing.T) {
	st := NewService(Dependencies{}).Sample()
	assert.Zero(t, st.Turn)
	assert.Zero(t, st.PendingWrites)
	assert.Zero(t, st.Mirrors)
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status", "status.json")
	var turn atomic.Int64
	turn.Store(4)

	s := NewService(Dependencies{
		Logger:     slog.New(slog.DiscardHandler),
		Session:    "lair",
		Turn:       turn.Load,
		StatusFile: path,
		Interval:   5 * time.Millisecond,
	})
	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		var st Status
		return json.Unmarshal(data, &st) == nil && st.Turn == 4
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, int64(4), s.Last().Turn)
	s.Stop()
}
