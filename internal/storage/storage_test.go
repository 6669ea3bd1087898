package storage_test

import (
	"testing"
	"time"

	"github.com/opendungeons/keeper/internal/seat"
	"github.com/opendungeons/keeper/internal/storage"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	turns []int64
}

func (r *recorder) Init() error                            { return nil }
func (r *recorder) Close() error                           { return nil }
func (r *recorder) StartSession(storage.SessionInfo) error { return nil }
func (r *recorder) EndSession() error                      { return nil }
func (r *recorder) RecordTurn(turn int64, _ []seat.Snapshot) error {
	r.turns = append(r.turns, turn)
	return nil
}

var _ storage.Backend = (*recorder)(nil)

func TestSessionInfoFields(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	info := storage.SessionInfo{
		Name:      "lair_20260301",
		LevelName: "Lair",
		Ruleset:   "default",
		StartedAt: start,
		Seats:     []seat.Snapshot{{ID: 1}, {ID: 2}},
	}

	assert.Equal(t, "Lair", info.LevelName)
	assert.Equal(t, start, info.StartedAt)
	assert.Len(t, info.Seats, 2)
}

func TestBackendContract(t *testing.T) {
	var b storage.Backend = &recorder{}
	assert.NoError(t, b.RecordTurn(1, nil))
	assert.NoError(t, b.RecordTurn(2, nil))
	assert.Equal(t, []int64{1, 2}, b.(*recorder).turns)
}
