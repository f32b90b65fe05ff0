package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cfs-go/internal/config"
	"cfs-go/internal/database/migrations"
)

func TestNewDatabaseFromConfig(t *testing.T) {
	t.Run("memory database", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "memory"}
		got, err := NewDatabaseFromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if err := got.CheckMigrations(); err != nil {
			t.Errorf("memory database should be migrated: %v", err)
		}
	})

	t.Run("sqlite database", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "db")
		cfg := config.DatabaseConfig{Type: "sqlite", DataDir: dir}
		got, err := NewDatabaseFromConfig(cfg, nil)
		if err != nil {
			t.Fatalf("NewDatabaseFromConfig() unexpected error: %v", err)
		}
		defer got.Close()

		if got.Path() != filepath.Join(dir, FileName) {
			t.Errorf("Path() = %q, want %q", got.Path(), filepath.Join(dir, FileName))
		}
		if err := got.CheckMigrations(); !errors.Is(err, migrations.ErrNotMigrated) {
			t.Errorf("CheckMigrations() before migrate error = %v, want ErrNotMigrated", err)
		}
		if err := got.MigrateUp(); err != nil {
			t.Fatalf("MigrateUp() error = %v", err)
		}
		st, err := got.MigrationStatus()
		if err != nil || st.Version != st.Latest || st.Dirty {
			t.Errorf("MigrationStatus() = %+v, %v; want current", st, err)
		}
		if _, err := os.Stat(got.Path()); err != nil {
			t.Errorf("database file not created: %v", err)
		}
	})

	t.Run("sqlite database without data_dir", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "sqlite"}
		got, err := NewDatabaseFromConfig(cfg, nil)

		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for missing data_dir, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})

	t.Run("unknown database type", func(t *testing.T) {
		cfg := config.DatabaseConfig{Type: "unknown"}
		got, err := NewDatabaseFromConfig(cfg, nil)

		if err == nil {
			t.Error("NewDatabaseFromConfig() expected error for unknown type, got nil")
		}
		if got != nil {
			t.Error("NewDatabaseFromConfig() should return nil on error")
			got.Close()
		}
	})
}
