package testutil

import (
	"cfs-go/internal/staging"
)

const (
	// DefaultSpoolMaxSize is the default batch limit for test spools (10MB).
	DefaultSpoolMaxSize = 10 * 1024 * 1024
)

// NewTestSpool creates a new in-memory upload spool for testing.
func NewTestSpool() *staging.Spool {
	return staging.NewMemorySpool(DefaultSpoolMaxSize)
}

// NewTestSpoolWithSize creates a new in-memory upload spool with a custom batch limit.
func NewTestSpoolWithSize(maxSize int64) *staging.Spool {
	return staging.NewMemorySpool(maxSize)
}
