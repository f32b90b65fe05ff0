// Package staging spools the parts of an upload request before they are
// handed to the resource service, so the whole batch is known (names and
// sizes) before the first object is written.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"cfs-go/internal/cfs"
)

// ErrBatchTooLarge is returned when a batch would exceed the spool's
// maximum size.
var ErrBatchTooLarge = errors.New("upload exceeds maximum size")

// Spool holds upload batches using a pluggable spoolStore for the storage
// mechanics. All shared logic lives here. Safe for concurrent use; a single
// Batch is not.
type Spool struct {
	store   spoolStore
	maxSize int64
}

func newSpool(store spoolStore, maxSize int64) *Spool {
	return &Spool{store: store, maxSize: maxSize}
}

// MaxSize returns the maximum size of one batch in bytes.
func (s *Spool) MaxSize() int64 {
	return s.maxSize
}

// Size returns the total size of spooled content in bytes, across batches.
func (s *Spool) Size() (int64, error) {
	return s.store.ContentSize()
}

// NewBatch starts an empty batch. The caller must Close it.
func (s *Spool) NewBatch() *Batch {
	return &Batch{spool: s}
}

// Entry is one spooled file.
type Entry struct {
	Name     string
	Size     int64
	Checksum string // SHA-256, lowercase hex
	id       string
}

// Batch is the set of files of one upload request.
type Batch struct {
	spool   *Spool
	entries []Entry
	size    int64
	readers []io.Closer
	closed  bool
}

// Stage reads r to the end and adds it to the batch as name.
// Returns ErrBatchTooLarge, and keeps nothing of r, when the batch would
// grow beyond the spool's maximum size.
func (b *Batch) Stage(name string, r io.Reader) (*Entry, error) {
	if b.closed {
		return nil, fmt.Errorf("batch is closed")
	}
	remaining := b.spool.maxSize - b.size
	id := uuid.New().String()

	// Read one byte past the limit to tell "exactly full" from "too big".
	h := sha256.New()
	limited := io.TeeReader(io.LimitReader(r, remaining+1), h)

	size, err := b.spool.store.StoreContent(id, limited)
	if err == nil && size > remaining {
		b.spool.store.RemoveContent(id)
		err = fmt.Errorf("%w: %s: limit is %d bytes", ErrBatchTooLarge, name, b.spool.maxSize)
	}
	if err != nil {
		return nil, fmt.Errorf("spooling %s: %w", name, err)
	}

	b.entries = append(b.entries, Entry{
		Name:     name,
		Size:     size,
		Checksum: hex.EncodeToString(h.Sum(nil)),
		id:       id,
	})
	b.size += size
	return &b.entries[len(b.entries)-1], nil
}

// Entries returns the staged files in the order they were staged.
func (b *Batch) Entries() []Entry {
	return b.entries
}

// Size returns the number of bytes staged in the batch.
func (b *Batch) Size() int64 {
	return b.size
}

// Uploads opens every staged file for the resource service. The readers
// are closed by Close.
func (b *Batch) Uploads() ([]cfs.Upload, error) {
	uploads := make([]cfs.Upload, 0, len(b.entries))
	for _, e := range b.entries {
		rc, err := b.spool.store.OpenContent(e.id)
		if err != nil {
			return nil, fmt.Errorf("opening spooled %s: %w", e.Name, err)
		}
		b.readers = append(b.readers, rc)
		uploads = append(uploads, cfs.Upload{Name: e.Name, Size: e.Size, Content: rc})
	}
	return uploads, nil
}

// Close releases every reader and removes the batch's content from the
// spool. Safe to call more than once.
func (b *Batch) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, r := range b.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.readers = nil

	for _, e := range b.entries {
		b.spool.store.RemoveContent(e.id)
	}
	return errors.Join(errs...)
}
