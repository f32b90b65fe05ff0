package auth

import (
	"context"
	"sync"

	"cfs-go/internal/cfs"
)

// MemorySessionStore keeps sessions in a map. Sessions are lost on restart.
// This implementation is safe for concurrent use.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	clock    cfs.Clock
}

func NewMemorySessionStore(clock cfs.Clock) *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session), clock: clock}
}

func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = *s
	return nil
}

// Get drops the session when it has expired.
func (m *MemorySessionStore) Get(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.Expired(m.clock.Now()) {
		m.mu.Lock()
		delete(m.sessions, token)
		m.mu.Unlock()
		return nil, nil
	}
	return &s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *MemorySessionStore) Close() error {
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
