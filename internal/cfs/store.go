package cfs

import (
	"context"
	"io"

	"cfs-go/internal/model"
)

// ObjectStore is the object storage backend holding file bytes.
// Keys use "/" as separator; a directory is a zero-length marker object
// whose key ends in "/". All operations stream through io.Reader so large
// files are never loaded into memory.
type ObjectStore interface {
	// Exists reports whether an object is stored at key. A missing key is
	// (false, nil); only transport failures return an error.
	Exists(ctx context.Context, key string) (bool, error)

	// PrefixExists reports whether at least one key starts with prefix.
	// A trailing "/" is added when missing.
	PrefixExists(ctx context.Context, prefix string) (bool, error)

	// Put stores size bytes read from r at key, replacing any object there.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// PutEmpty stores a zero-length marker object at key.
	PutEmpty(ctx context.Context, key string) error

	// Delete removes one object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object under prefix. All per-key failures
	// are reported in the returned error.
	DeletePrefix(ctx context.Context, prefix string) error

	// Copy duplicates the object at src to dst.
	Copy(ctx context.Context, src, dst string) error

	// CopyPrefix copies every object under srcPrefix to dstPrefix plus the
	// key's suffix. All per-key failures are reported in the returned error.
	CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error

	// ListChildren returns the immediate children of prefix. The marker of
	// prefix itself is not included.
	ListChildren(ctx context.Context, prefix string) ([]model.ObjectInfo, error)

	// ListAll returns every key under prefix, recursively, sorted by key.
	ListAll(ctx context.Context, prefix string) ([]model.ObjectInfo, error)

	// StatSize returns the byte length of the object at key, or
	// ErrObjectNotFound.
	StatSize(ctx context.Context, key string) (int64, error)

	// Open streams the object at key. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// ValidateSetup verifies that the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}

// NameFilter decides whether an uploaded file name should be skipped.
type NameFilter interface {
	Ignored(name string) bool
}
