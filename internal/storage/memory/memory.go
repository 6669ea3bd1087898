// Package memory keeps the session history in memory and writes it out when
// the session ends: a save file in level format and a JSON turn history.
package memory

import (
	"fmt"
	"slices"
	"sync"

	"github.com/opendungeons/keeper/internal/config"
	"github.com/opendungeons/keeper/internal/level"
	"github.com/opendungeons/keeper/internal/seat"
	"github.com/opendungeons/keeper/internal/storage"
)

// SeatRecord groups a seat's load-time state with its per-turn snapshots.
type SeatRecord struct {
	Initial seat.Snapshot
	Turns   []TurnState
}

// TurnState is a snapshot tagged with the turn it was taken at.
type TurnState struct {
	Turn int64
	seat.Snapshot
}

// Backend stores session data in memory and exports it on EndSession.
type Backend struct {
	cfg     config.MemoryConfig
	lvl     *level.Level
	session *storage.SessionInfo

	seats    map[int]*SeatRecord
	order    []int
	lastTurn int64

	lastExportPath  string
	lastHistoryPath string
	mu              sync.RWMutex
}

// New creates a new memory backend. When lvl is set, its non-seat sections
// (goals, tiles) are carried into the exported save file.
func New(cfg config.MemoryConfig, lvl *level.Level) *Backend {
	return &Backend{
		cfg:   cfg,
		lvl:   lvl,
		seats: make(map[int]*SeatRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(info storage.SessionInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = &info
	b.seats = make(map[int]*SeatRecord, len(info.Seats))
	b.order = b.order[:0]
	b.lastTurn = 0
	for _, snap := range info.Seats {
		if _, dup := b.seats[snap.ID]; dup {
			return fmt.Errorf("duplicate seat %d in session info", snap.ID)
		}
		b.seats[snap.ID] = &SeatRecord{Initial: snap}
		b.order = append(b.order, snap.ID)
	}
	slices.Sort(b.order)
	return nil
}

// RecordTurn appends one snapshot per seat. Seats not announced in
// StartSession are rejected.
func (b *Backend) RecordTurn(turn int64, snaps []seat.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("record turn %d: no session started", turn)
	}
	for _, snap := range snaps {
		if _, ok := b.seats[snap.ID]; !ok {
			return fmt.Errorf("record turn %d: unknown seat %d", turn, snap.ID)
		}
	}
	for _, snap := range snaps {
		rec := b.seats[snap.ID]
		snap.SpawnPool = slices.Clone(snap.SpawnPool)
		rec.Turns = append(rec.Turns, TurnState{Turn: turn, Snapshot: snap})
	}
	b.lastTurn = max(b.lastTurn, turn)
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("end session: no session started")
	}
	return b.export()
}

// Latest returns the most recent snapshot of a seat, or its load-time state
// if no turn was recorded yet.
func (b *Backend) Latest(seatID int) (seat.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.seats[seatID]
	if !ok {
		return seat.Snapshot{}, false
	}
	if n := len(rec.Turns); n > 0 {
		return rec.Turns[n-1].Snapshot, true
	}
	return rec.Initial, true
}

// History returns the recorded turns of a seat.
func (b *Backend) History(seatID int) []TurnState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.seats[seatID]
	if !ok {
		return nil
	}
	return slices.Clone(rec.Turns)
}

// LastTurn returns the highest recorded turn.
func (b *Backend) LastTurn() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTurn
}

// ExportedFilePath returns the save file written by the last EndSession.
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// HistoryFilePath returns the turn history written by the last EndSession.
func (b *Backend) HistoryFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastHistoryPath
}
