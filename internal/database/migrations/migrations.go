package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed files/*.sql
var migrationFiles embed.FS

var (
	// ErrNotMigrated means the metadata database has no schema yet, or an
	// older one than this binary expects.
	ErrNotMigrated = errors.New("metadata schema is out of date (run `cfs db migrate`)")

	// ErrNewerSchema means the database was migrated by a newer cfs. Restored
	// snapshots taken by a newer release end up here.
	ErrNewerSchema = errors.New("metadata schema is newer than this cfs binary")

	// ErrDirty means an earlier migration stopped halfway.
	ErrDirty = errors.New("metadata schema is dirty")
)

// Status describes the schema version of a database against the embedded
// migrations. Version is 0 for an unmigrated database.
type Status struct {
	Version uint
	Latest  uint
	Dirty   bool
}

func (s Status) String() string {
	switch {
	case s.Dirty:
		return fmt.Sprintf("version %d (dirty)", s.Version)
	case s.Version == s.Latest:
		return fmt.Sprintf("version %d (current)", s.Version)
	default:
		return fmt.Sprintf("version %d of %d", s.Version, s.Latest)
	}
}

// Check returns the schema status together with one of ErrNotMigrated,
// ErrNewerSchema or ErrDirty when the database cannot be served as is.
func Check(db *sql.DB) (Status, error) {
	st, err := ReadStatus(db)
	if err != nil {
		return st, err
	}
	switch {
	case st.Dirty:
		return st, fmt.Errorf("%w at version %d", ErrDirty, st.Version)
	case st.Version < st.Latest:
		return st, fmt.Errorf("%w: at version %d, want %d", ErrNotMigrated, st.Version, st.Latest)
	case st.Version > st.Latest:
		return st, fmt.Errorf("%w: at version %d, binary knows %d", ErrNewerSchema, st.Version, st.Latest)
	}
	return st, nil
}

// ReadStatus reads the schema version without judging it.
func ReadStatus(db *sql.DB) (Status, error) {
	var st Status

	latest, err := latestVersion()
	if err != nil {
		return st, err
	}
	st.Latest = latest

	// m is not closed: closing it would close db, which the caller owns.
	m, err := newMigrate(db)
	if err != nil {
		return st, err
	}
	st.Version, st.Dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("reading schema version: %w", err)
	}
	return st, nil
}

// MigrateUp applies every pending migration. An up-to-date database is not
// an error.
func MigrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying metadata migrations: %w", err)
	}
	return nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("loading embedded migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("wrapping metadata database: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// latestVersion walks the embedded migrations to the last one.
func latestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, fmt.Errorf("loading embedded migrations: %w", err)
	}
	defer src.Close()
	return lastOf(src)
}

func lastOf(src source.Driver) (uint, error) {
	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("reading first migration: %w", err)
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			// Next fails with fs.ErrNotExist past the last migration.
			return v, nil
		}
		v = next
	}
}
