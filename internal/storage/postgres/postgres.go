// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with the queue-based writer of gormstore.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/opendungeons/keeper/internal/config"
	"github.com/opendungeons/keeper/internal/database"
	"github.com/opendungeons/keeper/internal/storage/gormstore"
)

// Backend is a gormstore.Backend that opens its own Postgres connection.
type Backend struct {
	*gormstore.Backend
	cfg config.DBConfig
	log *slog.Logger
}

// New creates a new Postgres storage backend. The connection is made in Init.
func New(cfg config.DBConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend: gormstore.New(gormstore.Dependencies{Logger: logger}),
		cfg:     cfg,
		log:     logger,
	}
}

// Init connects, validates the connection, then initializes the embedded backend.
func (b *Backend) Init() error {
	if b.DB() == nil {
		db, err := database.OpenPostgres(b.cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.SetDB(db)
		b.log.Info("Connected to database", "host", b.cfg.Host, "database", b.cfg.Database)
	}
	return b.Backend.Init()
}
