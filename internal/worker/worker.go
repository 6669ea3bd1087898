package worker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/opendungeons/keeper/internal/seat"
	"github.com/opendungeons/keeper/internal/storage"
)

// ErrBadPayload is returned when an event does not carry the payload its
// command needs.
var ErrBadPayload = errors.New("unexpected event payload")

// MetricsWriter receives the per-turn seat values for time series storage.
type MetricsWriter interface {
	WriteTurn(session string, turn int64, snaps []seat.Snapshot, ts time.Time) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Logger *slog.Logger
	// SessionName tags metric points.
	SessionName string
	// Metrics is optional; without it no metrics handler is registered.
	Metrics MetricsWriter
}

// Manager routes turn events to the storage backend and metrics writer
type Manager struct {
	deps    Dependencies
	backend storage.Backend
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// PendingWritesProvider is an optional interface that backends can implement
// to expose the number of rows waiting for the next write cycle.
type PendingWritesProvider interface {
	Pending() int
}

// PendingWrites returns the number of rows the backend has not written yet.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) PendingWrites() int {
	if p, ok := m.backend.(PendingWritesProvider); ok {
		return p.Pending()
	}
	return 0
}
