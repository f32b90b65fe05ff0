package testutil

import (
	"context"
	"testing"

	"cfs-go/internal/cfs"
	"cfs-go/internal/database"
	"cfs-go/internal/model"
	"cfs-go/internal/storage"
)

// Env bundles a resource service with the fakes behind it.
type Env struct {
	Service  *cfs.ResourceService
	Database *database.SQLiteDatabase
	Store    *storage.MemoryStore
	Clock    *StubClock
}

// NewTestEnv wires a ResourceService to an in-memory database and store.
func NewTestEnv(t *testing.T, opts cfs.ServiceOptions) *Env {
	t.Helper()

	db := NewTestDatabase(t)
	store := NewTestStore()
	clock := FixedClock()
	return &Env{
		Service:  cfs.NewResourceService(db, store, cfs.NewNopLogger(), clock, opts),
		Database: db,
		Store:    store,
		Clock:    clock,
	}
}

// NewProvisionedUser creates a user and its storage root.
func (e *Env) NewProvisionedUser(t *testing.T, username string) *model.User {
	t.Helper()

	u := NewTestUser(t, e.Database, username)
	if err := e.Service.ProvisionUser(context.Background(), u); err != nil {
		t.Fatalf("failed to provision %s: %v", username, err)
	}
	return u
}
