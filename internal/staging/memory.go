package staging

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// memoryStore keeps spooled content in memory, making it useful for
// testing and small deployments.
type memoryStore struct {
	mu       sync.Mutex
	contents map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{contents: make(map[string][]byte)}
}

func (m *memoryStore) StoreContent(id string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("reading content: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[id] = data
	return int64(len(data)), nil
}

func (m *memoryStore) RemoveContent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contents, id)
}

func (m *memoryStore) OpenContent(id string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.contents[id]
	if !ok {
		return nil, fmt.Errorf("content not found: %s", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) ContentSize() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, data := range m.contents {
		total += int64(len(data))
	}
	return total, nil
}

// NewMemorySpool creates a spool that holds uploads in memory.
// maxSize is the maximum size of one batch in bytes; must be positive.
func NewMemorySpool(maxSize int64) *Spool {
	return newSpool(newMemoryStore(), maxSize)
}
