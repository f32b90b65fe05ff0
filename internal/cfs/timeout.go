package cfs

import (
	"context"
	"io"
	"time"

	"cfs-go/internal/model"
)

// Default per-call deadlines. Transfers move object bytes and get the
// longer one.
const (
	DefaultCallTimeout     = 30 * time.Second
	DefaultTransferTimeout = 10 * time.Minute
)

// boundedStore applies a per-call deadline to every ObjectStore operation
// except Open, whose context must outlive the call while the body is read.
type boundedStore struct {
	next     ObjectStore
	timeout  time.Duration
	transfer time.Duration
}

func (b *boundedStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Exists(ctx, key)
}

func (b *boundedStore) PrefixExists(ctx context.Context, prefix string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.PrefixExists(ctx, prefix)
}

func (b *boundedStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, b.transfer)
	defer cancel()
	return b.next.Put(ctx, key, r, size)
}

func (b *boundedStore) PutEmpty(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.PutEmpty(ctx, key)
}

func (b *boundedStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.Delete(ctx, key)
}

func (b *boundedStore) DeletePrefix(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, b.transfer)
	defer cancel()
	return b.next.DeletePrefix(ctx, prefix)
}

func (b *boundedStore) Copy(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, b.transfer)
	defer cancel()
	return b.next.Copy(ctx, src, dst)
}

func (b *boundedStore) CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error {
	ctx, cancel := context.WithTimeout(ctx, b.transfer)
	defer cancel()
	return b.next.CopyPrefix(ctx, srcPrefix, dstPrefix)
}

func (b *boundedStore) ListChildren(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ListChildren(ctx, prefix)
}

func (b *boundedStore) ListAll(ctx context.Context, prefix string) ([]model.ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ListAll(ctx, prefix)
}

func (b *boundedStore) StatSize(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.StatSize(ctx, key)
}

func (b *boundedStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.next.Open(ctx, key)
}

func (b *boundedStore) ValidateSetup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.next.ValidateSetup(ctx)
}

// boundedDatabase applies a per-call deadline to the metadata operations
// used by the engine.
type boundedDatabase struct {
	Database
	timeout time.Duration
}

func (b *boundedDatabase) FindResourceByPath(ctx context.Context, ownerID int64, path string) (*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.FindResourceByPath(ctx, ownerID, path)
}

func (b *boundedDatabase) FindResourcesByPaths(ctx context.Context, ownerID int64, paths []string) (map[string]*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.FindResourcesByPaths(ctx, ownerID, paths)
}

func (b *boundedDatabase) SaveResource(ctx context.Context, r *model.Resource) (*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.SaveResource(ctx, r)
}

func (b *boundedDatabase) SaveResources(ctx context.Context, rs []*model.Resource) ([]*model.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.SaveResources(ctx, rs)
}

func (b *boundedDatabase) DeleteResource(ctx context.Context, ownerID int64, path string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.DeleteResource(ctx, ownerID, path)
}

func (b *boundedDatabase) MoveResources(ctx context.Context, ownerID int64, from, to string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.MoveResources(ctx, ownerID, from, to)
}

func (b *boundedDatabase) ReplaceResources(ctx context.Context, ownerID int64, path string, rs []*model.Resource) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.ReplaceResources(ctx, ownerID, path, rs)
}

func (b *boundedDatabase) CreateOperation(ctx context.Context, operation string, ownerID int64, source, target string) (*model.Operation, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.CreateOperation(ctx, operation, ownerID, source, target)
}

func (b *boundedDatabase) FinishOperation(ctx context.Context, id int64, status string) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return b.Database.FinishOperation(ctx, id, status)
}

var (
	_ ObjectStore = (*boundedStore)(nil)
	_ Database    = (*boundedDatabase)(nil)
)
