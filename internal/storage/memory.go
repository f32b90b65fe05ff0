package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"cfs-go/internal/cfs"
	"cfs-go/internal/model"
)

// MemoryStore is an in-memory implementation of the ObjectStore interface.
// It keeps every object in a map, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex

	// failKeys makes DeletePrefix and CopyPrefix fail for the listed keys.
	failKeys map[string]error
}

// NewMemoryStore creates a new in-memory store with the given name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:     name,
		objects:  make(map[string][]byte),
		failKeys: make(map[string]error),
	}
}

// FailKey makes per-key bulk operations on key return err. Use in tests.
func (m *MemoryStore) FailKey(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failKeys[key] = err
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MemoryStore) PrefixExists(_ context.Context, prefix string) (bool, error) {
	prefix = withSlash(prefix)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemoryStore) PutEmpty(ctx context.Context, key string) error {
	return m.Put(ctx, key, bytes.NewReader(nil), 0)
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	items, err := m.ListAll(ctx, withSlash(prefix))
	if err != nil {
		return err
	}
	var errs []error
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range items {
		if ferr, ok := m.failKeys[item.Key]; ok {
			errs = append(errs, fmt.Errorf("deleting %s: %w", item.Key, ferr))
			continue
		}
		delete(m.objects, item.Key)
	}
	return errors.Join(errs...)
}

func (m *MemoryStore) Copy(_ context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[src]
	if !ok {
		return fmt.Errorf("%s: %w", src, cfs.ErrObjectNotFound)
	}
	m.objects[dst] = bytes.Clone(data)
	return nil
}

func (m *MemoryStore) CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error {
	srcPrefix, dstPrefix = withSlash(srcPrefix), withSlash(dstPrefix)
	items, err := m.ListAll(ctx, srcPrefix)
	if err != nil {
		return err
	}
	return fanOut(ctx, DefaultFanout, items, func(ctx context.Context, item model.ObjectInfo) error {
		m.mu.RLock()
		ferr, fail := m.failKeys[item.Key]
		m.mu.RUnlock()
		if fail {
			return fmt.Errorf("copying %s: %w", item.Key, ferr)
		}
		return m.Copy(ctx, item.Key, dstPrefix+strings.TrimPrefix(item.Key, srcPrefix))
	})
}

func (m *MemoryStore) ListChildren(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	prefix = withSlash(prefix)
	all, err := m.ListAll(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return childrenOf(prefix, all), nil
}

func (m *MemoryStore) ListAll(_ context.Context, prefix string) ([]model.ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, model.ObjectInfo{
				Key:   key,
				Size:  int64(len(data)),
				IsDir: strings.HasSuffix(key, "/"),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) StatSize(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return 0, fmt.Errorf("%s: %w", key, cfs.ErrObjectNotFound)
	}
	return int64(len(data)), nil
}

func (m *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, cfs.ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(context.Context) error {
	return nil
}

// Compile-time check that MemoryStore implements cfs.ObjectStore interface
var _ cfs.ObjectStore = (*MemoryStore)(nil)
