package storage

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"cfs-go/internal/cfs"
	"cfs-go/internal/config"
)

// FilesystemOptions configures a FileSystemStore.
type FilesystemOptions struct {
	Root string `mapstructure:"root"`
}

// NewObjectStoreFromConfig creates an ObjectStore implementation based on the storage config type.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (cfs.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.Type), nil
	case "filesystem":
		var opts FilesystemOptions
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Root == "" {
			return nil, fmt.Errorf("filesystem store requires options.root to be set")
		}
		return NewFileSystemStore(cfg.Type, opts.Root, cfg.Fanout)
	case "s3":
		var opts S3Options
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		if opts.Bucket == "" {
			return nil, fmt.Errorf("s3 store requires options.bucket to be set")
		}
		client, err := NewS3Client(ctx, opts)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, opts, cfg.Fanout)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// decodeOptions decodes the free-form options table into out. Values set
// through the environment arrive as strings, so weak typing is on.
func decodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return fmt.Errorf("creating options decoder: %w", err)
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("invalid storage options: %w", err)
	}
	return nil
}
