package testutil

import (
	"context"
	"testing"

	"cfs-go/internal/cfs"
	"cfs-go/internal/database"
	"cfs-go/internal/model"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB, FixedClock())

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewTestUser inserts a user with a dummy password hash.
func NewTestUser(t *testing.T, db cfs.Database, username string) *model.User {
	t.Helper()

	u, err := db.CreateUser(context.Background(), username, "not-a-real-hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}
