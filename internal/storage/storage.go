// Package storage defines the turn history backends of a host session.
package storage

import (
	"time"

	"github.com/opendungeons/keeper/internal/seat"
)

// SessionInfo describes the session a backend records.
type SessionInfo struct {
	Name      string
	LevelName string
	Ruleset   string
	StartedAt time.Time
	// Seats is the state of every seat at load time, in id order.
	Seats []seat.Snapshot
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(info SessionInfo) error
	EndSession() error

	// RecordTurn stores the state of every seat at the end of turn.
	RecordTurn(turn int64, snaps []seat.Snapshot) error
}

// Exportable is an optional interface for storage backends that write a
// file when the session ends.
type Exportable interface {
	ExportedFilePath() string
}
