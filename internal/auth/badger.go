package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"cfs-go/internal/cfs"
)

// Key format: "s:<token>"
const prefixSession = "s:"

func keySession(token string) []byte {
	return []byte(prefixSession + token)
}

// BadgerSessionStore persists sessions in a BadgerDB directory. Each entry
// carries a TTL so badger drops it once the session expires; Get also
// checks the expiry against the clock.
type BadgerSessionStore struct {
	db    *badger.DB
	clock cfs.Clock
}

// NewBadgerSessionStore opens (or creates) a store in dir. An empty dir
// opens an in-memory store.
func NewBadgerSessionStore(dir string, clock cfs.Clock) (*BadgerSessionStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return &BadgerSessionStore{db: db, clock: clock}, nil
}

func (b *BadgerSessionStore) Save(_ context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(b.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired at %s", s.ExpiresAt)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(keySession(s.Token), data).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (b *BadgerSessionStore) Get(_ context.Context, token string) (*Session, error) {
	var s *Session
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keySession(token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var decoded Session
			if err := json.Unmarshal(val, &decoded); err != nil {
				return fmt.Errorf("failed to decode session: %w", err)
			}
			decoded.Token = token
			s = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil || s.Expired(b.clock.Now()) {
		return nil, nil
	}
	return s, nil
}

func (b *BadgerSessionStore) Delete(_ context.Context, token string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keySession(token))
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (b *BadgerSessionStore) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close session store: %w", err)
	}
	return nil
}

var _ SessionStore = (*BadgerSessionStore)(nil)
