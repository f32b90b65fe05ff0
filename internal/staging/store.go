package staging

import "io"

// spoolStore abstracts the storage mechanics for a spool.
// Stores must be safe for concurrent use: parts of different requests are
// written at the same time, and StoreContent must not hold a lock while it
// reads from a slow client.
type spoolStore interface {
	// StoreContent reads r to the end and stores it under id.
	// Returns the number of bytes stored.
	StoreContent(id string, r io.Reader) (size int64, err error)

	// RemoveContent removes stored content by id (best-effort).
	RemoveContent(id string)

	// OpenContent returns a reader for stored content by id.
	OpenContent(id string) (io.ReadCloser, error)

	// ContentSize returns total bytes of all stored content.
	ContentSize() (int64, error)
}
