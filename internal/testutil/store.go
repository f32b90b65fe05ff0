package testutil

import (
	"cfs-go/internal/storage"
)

// NewTestStore creates a new in-memory object store for testing.
func NewTestStore() *storage.MemoryStore {
	return storage.NewMemoryStore("test-store")
}
