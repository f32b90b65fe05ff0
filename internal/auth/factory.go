package auth

import (
	"fmt"
	"os"

	"cfs-go/internal/cfs"
	"cfs-go/internal/config"
)

// NewSessionStoreFromConfig creates a SessionStore based on the configuration.
func NewSessionStoreFromConfig(cfg config.AuthConfig, clock cfs.Clock) (SessionStore, error) {
	switch cfg.SessionStore {
	case "memory":
		return NewMemorySessionStore(clock), nil
	case "badger":
		if err := os.MkdirAll(cfg.SessionDir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		return NewBadgerSessionStore(cfg.SessionDir, clock)
	default:
		return nil, fmt.Errorf("unknown session store type: %q", cfg.SessionStore)
	}
}
