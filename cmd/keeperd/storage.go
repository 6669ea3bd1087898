package main

import (
	"fmt"
	"log/slog"

	"github.com/opendungeons/keeper/internal/config"
	"github.com/opendungeons/keeper/internal/database"
	"github.com/opendungeons/keeper/internal/level"
	"github.com/opendungeons/keeper/internal/storage"
	"github.com/opendungeons/keeper/internal/storage/memory"
	pgstorage "github.com/opendungeons/keeper/internal/storage/postgres"
	sqlitestorage "github.com/opendungeons/keeper/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// createStorageBackend builds the backend selected by storage.type. A
// postgres backend that cannot reach its server records into in-memory
// SQLite with periodic dumps instead.
func createStorageBackend(storageCfg config.StorageConfig, dbCfg config.DBConfig, lvl *level.Level, logger *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		dbManager := database.NewManager(dbLog)
		if err := dbManager.Connect(dbCfg); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if dbManager.ShouldSaveLocal {
			logger.Warn("Postgres unreachable, recording to SQLite", "dumpPath", storageCfg.SQLite.DumpPath)
			return sqlitestorage.NewWithDB(dbManager.DB, storageCfg.SQLite, logger), nil
		}
		backend := pgstorage.New(dbCfg, logger)
		backend.SetDB(dbManager.DB)
		logger.Info("Postgres storage backend initialized")
		return backend, nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		logger.Info("SQLite storage backend initialized", "dumpPath", storageCfg.SQLite.DumpPath)
		return backend, nil

	case "memory", "":
		logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory, lvl), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}
