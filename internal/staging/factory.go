package staging

import (
	"fmt"

	"cfs-go/internal/config"
)

// DefaultMaxSize is the default maximum batch size (1GB).
const DefaultMaxSize int64 = 1 << 30

// NewSpoolFromConfig creates a Spool based on the upload config type.
func NewSpoolFromConfig(cfg config.UploadConfig) (*Spool, error) {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	switch cfg.Type {
	case "memory":
		return NewMemorySpool(maxSize), nil
	case "filesystem":
		if cfg.SpoolDir == "" {
			return nil, fmt.Errorf("filesystem spool requires spool_dir to be set")
		}
		return NewFileSystemSpool(cfg.SpoolDir, maxSize)
	default:
		return nil, fmt.Errorf("unknown spool type: %s", cfg.Type)
	}
}
