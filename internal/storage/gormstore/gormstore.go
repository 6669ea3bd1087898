// Package gormstore implements the storage.Backend interface over GORM with
// an internal queue and a background writer goroutine. The postgres and
// sqlite backends wrap it.
package gormstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opendungeons/keeper/internal/database"
	"github.com/opendungeons/keeper/internal/model"
	"github.com/opendungeons/keeper/internal/model/convert"
	"github.com/opendungeons/keeper/internal/queue"
	"github.com/opendungeons/keeper/internal/seat"
	"github.com/opendungeons/keeper/internal/storage"

	"gorm.io/gorm"
)

const defaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	states    *queue.Queue[model.SeatState]
	sessionID atomic.Uint64
	lastTurn  atomic.Int64

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend. With a nil DB the backend only
// queues, which is what the unit tests use.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB { return b.deps.DB }

// SetDB replaces the connection. It must be called before Init.
func (b *Backend) SetDB(db *gorm.DB) { b.deps.DB = db }

// Init creates the queue, runs schema migration, and starts the writer goroutine.
func (b *Backend) Init() error {
	b.states = queue.New[model.SeatState]()
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})

	if b.deps.DB != nil {
		b.deps.Logger.Info("Migrating schema")
		if err := database.Migrate(b.deps.DB); err != nil {
			close(b.done)
			return err
		}
	}

	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine and flushes what is left in the queue.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	<-b.done
	return b.Flush()
}

// StartSession inserts the session row and one row per seat.
func (b *Backend) StartSession(info storage.SessionInfo) error {
	if b.deps.DB == nil {
		return nil
	}

	row := model.Session{
		Name:      info.Name,
		LevelName: info.LevelName,
		Ruleset:   info.Ruleset,
		StartedAt: info.StartedAt,
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}

	if len(info.Seats) > 0 {
		seats := make([]model.Seat, len(info.Seats))
		for i, snap := range info.Seats {
			seats[i] = convert.SnapshotToSeat(row.ID, snap)
		}
		if err := b.deps.DB.Create(&seats).Error; err != nil {
			return fmt.Errorf("failed to insert seats: %w", err)
		}
	}

	b.sessionID.Store(uint64(row.ID))
	b.lastTurn.Store(0)
	b.deps.Logger.Info("Session started", "sessionId", row.ID, "level", info.LevelName, "seats", len(info.Seats))
	return nil
}

// SessionID returns the id of the current session row, 0 before StartSession.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// RecordTurn converts and queues one row per seat.
func (b *Backend) RecordTurn(turn int64, snaps []seat.Snapshot) error {
	sessionID := b.SessionID()
	rows := make([]model.SeatState, len(snaps))
	for i, snap := range snaps {
		rows[i] = convert.SeatState(sessionID, turn, snap)
	}
	b.states.Push(rows...)
	if turn > b.lastTurn.Load() {
		b.lastTurn.Store(turn)
	}
	return nil
}

// EndSession flushes the queue and stamps the session row with its end
// time and turn count.
func (b *Backend) EndSession() error {
	if err := b.Flush(); err != nil {
		return err
	}
	if b.deps.DB == nil || b.SessionID() == 0 {
		return nil
	}
	err := b.deps.DB.Model(&model.Session{}).
		Where("id = ?", b.SessionID()).
		Updates(map[string]any{
			"ended_at": sql.NullTime{Time: time.Now(), Valid: true},
			"turns":    b.lastTurn.Load(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// Pending returns the number of queued rows not yet written.
func (b *Backend) Pending() int {
	return b.states.Len()
}

// Flush writes every queued row now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return writeQueue(b.deps.DB, b.states, "seat states", b.deps.Logger)
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the front of the queue for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	items := q.Drain()
	if len(items) == 0 {
		return nil
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating "+name, "count", len(items), "error", err)
		q.Requeue(items...)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// writerLoop periodically drains the queue into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	if b.deps.DB == nil {
		<-b.stopChan
		return
	}

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}

// SeatHistory returns the recorded turns of one seat, oldest first. A zero
// sessionID means the most recent session.
func SeatHistory(db *gorm.DB, sessionID uint, seatID int) ([]model.SeatState, error) {
	if sessionID == 0 {
		var last model.Session
		if err := db.Order("id desc").First(&last).Error; err != nil {
			return nil, fmt.Errorf("finding latest session: %w", err)
		}
		sessionID = last.ID
	}

	var rows []model.SeatState
	err := db.Where("session_id = ? AND seat_id = ?", sessionID, seatID).
		Order("turn asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying seat %d history: %w", seatID, err)
	}
	return rows, nil
}
