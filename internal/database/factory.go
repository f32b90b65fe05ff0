package database

import (
	"fmt"
	"os"
	"path/filepath"

	"cfs-go/internal/cfs"
	"cfs-go/internal/config"
)

// FileName is the name of the SQLite file inside the data directory.
const FileName = "cfs.db"

// NewDatabaseFromConfig creates a SQLiteDatabase based on the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock cfs.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, FileName), clock)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock)
		if err != nil {
			return nil, err
		}
		// Nothing persists, so the schema is always brought up here.
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
