package cfs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cfs-go/internal/model"
)

// ResourceInfo describes a resource to API clients. Path is the
// user-relative parent path ("" or ending in "/").
type ResourceInfo struct {
	Path string             `json:"path"`
	Name string             `json:"name"`
	Size *int64             `json:"size,omitempty"`
	Type model.ResourceType `json:"type"`
}

// ServiceOptions tunes a ResourceService. Zero values select defaults.
type ServiceOptions struct {
	UserFolderPattern string
	CallTimeout       time.Duration
	TransferTimeout   time.Duration
	Filter            NameFilter
}

// ResourceService is the orchestration layer that performs user file
// operations across the object store and the metadata database. Every
// mutation writes storage first and metadata second, bracketed by a journal
// intent.
type ResourceService struct {
	database Database
	store    ObjectStore
	journal  *Journal
	logger   Logger
	clock    Clock
	filter   NameFilter
	pattern  string
}

// NewResourceService creates a new ResourceService with the provided
// dependencies. Every store and database call is bounded by
// opts.CallTimeout, byte transfers by opts.TransferTimeout.
func NewResourceService(database Database, store ObjectStore, logger Logger, clock Clock, opts ServiceOptions) *ResourceService {
	if opts.UserFolderPattern == "" {
		opts.UserFolderPattern = DefaultUserFolderPattern
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.TransferTimeout <= 0 {
		opts.TransferTimeout = DefaultTransferTimeout
	}
	bdb := &boundedDatabase{Database: database, timeout: opts.CallTimeout}
	return &ResourceService{
		database: bdb,
		store:    &boundedStore{next: store, timeout: opts.CallTimeout, transfer: opts.TransferTimeout},
		journal:  NewJournal(bdb, logger),
		logger:   logger,
		clock:    clock,
		filter:   opts.Filter,
		pattern:  opts.UserFolderPattern,
	}
}

// Journal returns the operation journal used by the service.
func (s *ResourceService) Journal() *Journal {
	return s.journal
}

// RootFor returns the storage namespace of user.
func (s *ResourceService) RootFor(user *model.User) string {
	return RootFor(s.pattern, user.ID)
}

// ProvisionUser writes the root marker of a new user's namespace.
func (s *ResourceService) ProvisionUser(ctx context.Context, user *model.User) error {
	root := s.RootFor(user)
	if err := s.store.PutEmpty(ctx, root+Separator); err != nil {
		return failed("creating user root", err)
	}
	s.logger.Info("user namespace provisioned", "user", user.Username, "root", root)
	return nil
}

// resolve cleans a user-relative path and returns it with its absolute key.
func (s *ResourceService) resolve(user *model.User, raw string) (rel, abs string, err error) {
	if user == nil {
		return "", "", ErrUnauthorized
	}
	rel, err = CleanPath(raw)
	if err != nil {
		return "", "", err
	}
	root := s.RootFor(user)
	if rel == "" {
		return "", root, nil
	}
	return rel, Join(root, rel), nil
}

// describe builds the client descriptor of an absolute path.
func (s *ResourceService) describe(user *model.User, abs string, typ model.ResourceType, size int64) ResourceInfo {
	rel := strings.TrimPrefix(abs, s.RootFor(user)+Separator)
	info := ResourceInfo{
		Path: ParentOf(rel),
		Name: rel[len(ParentOf(rel)):],
		Type: typ,
	}
	if typ == model.ResourceFile {
		info.Size = &size
	}
	return info
}

// kindOf decides whether abs is a file or a directory. The persisted type
// wins when storage confirms it; otherwise storage is probed directly.
func (s *ResourceService) kindOf(ctx context.Context, user *model.User, abs string) (model.ResourceType, *model.Resource, error) {
	row, err := s.database.FindResourceByPath(ctx, user.ID, abs)
	if err != nil {
		return "", nil, failed("finding resource", err)
	}
	if row != nil {
		ok, err := s.existsAs(ctx, abs, row.Type)
		if err != nil {
			return "", nil, err
		}
		if ok {
			return row.Type, row, nil
		}
	}

	ok, err := s.store.Exists(ctx, abs)
	if err != nil {
		return "", nil, failed("checking object", err)
	}
	if ok {
		return model.ResourceFile, nil, nil
	}
	ok, err = s.store.PrefixExists(ctx, abs)
	if err != nil {
		return "", nil, failed("checking prefix", err)
	}
	if ok {
		return model.ResourceDirectory, nil, nil
	}
	return "", nil, notFound(strings.TrimPrefix(abs, s.RootFor(user)+Separator))
}

func (s *ResourceService) existsAs(ctx context.Context, abs string, typ model.ResourceType) (bool, error) {
	if typ == model.ResourceDirectory {
		ok, err := s.store.PrefixExists(ctx, abs)
		if err != nil {
			return false, failed("checking prefix", err)
		}
		return ok, nil
	}
	ok, err := s.store.Exists(ctx, abs)
	if err != nil {
		return false, failed("checking object", err)
	}
	return ok, nil
}

// occupied reports whether anything is stored at abs, as an object or as a
// prefix.
func (s *ResourceService) occupied(ctx context.Context, abs string) (bool, error) {
	ok, err := s.store.Exists(ctx, abs)
	if err != nil {
		return false, failed("checking object", err)
	}
	if ok {
		return true, nil
	}
	ok, err = s.store.PrefixExists(ctx, abs)
	if err != nil {
		return false, failed("checking prefix", err)
	}
	return ok, nil
}

// CreateDirectory creates an empty directory. The parent must exist and
// nothing may already be stored at path.
func (s *ResourceService) CreateDirectory(ctx context.Context, user *model.User, path string) (ResourceInfo, error) {
	rel, abs, err := s.resolve(user, path)
	if err != nil {
		return ResourceInfo{}, err
	}
	if rel == "" {
		return ResourceInfo{}, fmt.Errorf("%w: root directory", ErrAlreadyExists)
	}

	parentOK, err := s.store.PrefixExists(ctx, ParentOf(abs))
	if err != nil {
		return ResourceInfo{}, failed("checking parent", err)
	}
	if !parentOK {
		return ResourceInfo{}, fmt.Errorf("%w: %s", ErrFolderNotFound, ParentOf(rel))
	}
	taken, err := s.occupied(ctx, abs)
	if err != nil {
		return ResourceInfo{}, err
	}
	if taken {
		return ResourceInfo{}, fmt.Errorf("%w: %s", ErrAlreadyExists, rel)
	}

	intent, err := s.journal.Begin(ctx, OpCreateDirectory, user.ID, abs, "")
	if err != nil {
		return ResourceInfo{}, err
	}
	err = s.createDirectory(ctx, user, abs)
	intent.Finish(ctx, err)
	if err != nil {
		return ResourceInfo{}, err
	}

	s.logger.Info("directory created", "user", user.ID, "path", abs)
	return s.describe(user, abs, model.ResourceDirectory, 0), nil
}

func (s *ResourceService) createDirectory(ctx context.Context, user *model.User, abs string) error {
	if err := s.store.PutEmpty(ctx, abs+Separator); err != nil {
		return failed("creating directory marker", err)
	}
	_, err := s.database.SaveResource(ctx, &model.Resource{
		OwnerID: user.ID,
		Name:    LeafOf(abs),
		Path:    abs,
		Type:    model.ResourceDirectory,
	})
	if err != nil {
		return failed("saving directory", err)
	}
	return nil
}

// ListDirectory returns the immediate children of a directory as recorded
// in the object store.
func (s *ResourceService) ListDirectory(ctx context.Context, user *model.User, path string) ([]ResourceInfo, error) {
	rel, abs, err := s.resolve(user, path)
	if err != nil {
		return nil, err
	}
	if rel != "" {
		ok, err := s.store.PrefixExists(ctx, abs)
		if err != nil {
			return nil, failed("checking directory", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, rel)
		}
	}

	children, err := s.store.ListChildren(ctx, abs+Separator)
	if err != nil {
		return nil, failed("listing directory", err)
	}
	infos := make([]ResourceInfo, 0, len(children))
	for _, child := range children {
		if child.IsDir {
			infos = append(infos, s.describe(user, strings.TrimSuffix(child.Key, Separator), model.ResourceDirectory, 0))
			continue
		}
		infos = append(infos, s.describe(user, child.Key, model.ResourceFile, child.Size))
	}
	return infos, nil
}

// GetResourceInfo returns the descriptor of a file or directory. A
// resource present in storage without a metadata row is reported as
// ErrOperationFailed and flagged for repair.
func (s *ResourceService) GetResourceInfo(ctx context.Context, user *model.User, path string) (ResourceInfo, error) {
	rel, abs, err := s.resolve(user, path)
	if err != nil {
		return ResourceInfo{}, err
	}
	if rel == "" {
		return ResourceInfo{Type: model.ResourceDirectory}, nil
	}

	typ, row, err := s.kindOf(ctx, user, abs)
	if err != nil {
		return ResourceInfo{}, err
	}
	if row == nil {
		s.journal.Flag(ctx, user.ID, abs)
		return ResourceInfo{}, fmt.Errorf("%w: no metadata for %s", ErrOperationFailed, rel)
	}
	return s.describe(user, abs, typ, row.Size), nil
}

// DeleteResource removes a file, or a directory with everything under it.
func (s *ResourceService) DeleteResource(ctx context.Context, user *model.User, path string) error {
	rel, abs, err := s.resolve(user, path)
	if err != nil {
		return err
	}
	if rel == "" {
		return fmt.Errorf("%w: cannot delete the root directory", ErrInvalidOperation)
	}

	typ, _, err := s.kindOf(ctx, user, abs)
	if err != nil {
		return err
	}

	intent, err := s.journal.Begin(ctx, OpDeleteResource, user.ID, abs, "")
	if err != nil {
		return err
	}
	err = s.deleteResource(ctx, user, abs, typ)
	intent.Finish(ctx, err)
	if err != nil {
		return err
	}

	s.logger.Info("resource deleted", "user", user.ID, "path", abs, "type", typ)
	return nil
}

func (s *ResourceService) deleteResource(ctx context.Context, user *model.User, abs string, typ model.ResourceType) error {
	if typ == model.ResourceDirectory {
		if err := s.store.DeletePrefix(ctx, abs+Separator); err != nil {
			return failed("deleting directory", err)
		}
	} else {
		if err := s.store.Delete(ctx, abs); err != nil {
			return failed("deleting file", err)
		}
	}
	if _, err := s.database.DeleteResource(ctx, user.ID, abs); err != nil {
		return failed("deleting metadata", err)
	}
	return nil
}
