package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// fileSystemStore spools content to files in a directory.
//
// Directory structure:
//
//	<spool_dir>/
//	  files/
//	    <content_id>    (spooled upload part)
type fileSystemStore struct {
	filesDir string
	mu       sync.Mutex
	sizes    map[string]int64
}

func newFileSystemStore(spoolDir string) (*fileSystemStore, error) {
	filesDir := filepath.Join(spoolDir, "files")

	// Spooled parts never outlive the request that wrote them, so anything
	// found here was left by a crash.
	if err := os.RemoveAll(filesDir); err != nil {
		return nil, fmt.Errorf("failed to clear spool directory: %w", err)
	}
	if err := os.MkdirAll(filesDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	return &fileSystemStore{
		filesDir: filesDir,
		sizes:    make(map[string]int64),
	}, nil
}

func (f *fileSystemStore) StoreContent(id string, r io.Reader) (int64, error) {
	p := filepath.Join(f.filesDir, id)
	file, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create spool file: %w", err)
	}

	size, err := io.Copy(file, r)
	if err != nil {
		file.Close()
		os.Remove(p)
		return 0, fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(p)
		return 0, fmt.Errorf("failed to close spool file: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes[id] = size
	return size, nil
}

func (f *fileSystemStore) RemoveContent(id string) {
	os.Remove(filepath.Join(f.filesDir, id))
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sizes, id)
}

func (f *fileSystemStore) OpenContent(id string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(f.filesDir, id))
	if err != nil {
		return nil, fmt.Errorf("content not found: %s: %w", id, err)
	}
	return file, nil
}

func (f *fileSystemStore) ContentSize() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, size := range f.sizes {
		total += size
	}
	return total, nil
}

// NewFileSystemSpool creates a spool that writes uploads below spoolDir.
// maxSize is the maximum size of one batch in bytes; must be positive.
func NewFileSystemSpool(spoolDir string, maxSize int64) (*Spool, error) {
	store, err := newFileSystemStore(spoolDir)
	if err != nil {
		return nil, err
	}
	return newSpool(store, maxSize), nil
}
