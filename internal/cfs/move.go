package cfs

import (
	"context"
	"fmt"
	"strings"

	"cfs-go/internal/model"
)

// MoveOrRename renames a resource within its directory or moves it to
// another directory keeping its name. Doing both at once is rejected.
// Directory moves carry every descendant's metadata row along.
func (s *ResourceService) MoveOrRename(ctx context.Context, user *model.User, from, to string) (ResourceInfo, error) {
	relFrom, absFrom, err := s.resolve(user, from)
	if err != nil {
		return ResourceInfo{}, err
	}
	relTo, absTo, err := s.resolve(user, to)
	if err != nil {
		return ResourceInfo{}, err
	}
	if relFrom == "" || relTo == "" {
		return ResourceInfo{}, fmt.Errorf("%w: cannot move the root directory", ErrInvalidOperation)
	}

	kind, err := ClassifyRenameOrMove(relFrom, relTo)
	if err != nil {
		return ResourceInfo{}, err
	}

	typ, row, err := s.kindOf(ctx, user, absFrom)
	if err != nil {
		return ResourceInfo{}, err
	}
	if typ == model.ResourceDirectory && strings.HasPrefix(absTo+Separator, absFrom+Separator) {
		return ResourceInfo{}, fmt.Errorf("%w: cannot move %s into itself", ErrInvalidOperation, relFrom)
	}

	taken, err := s.occupied(ctx, absTo)
	if err != nil {
		return ResourceInfo{}, err
	}
	if taken {
		return ResourceInfo{}, fmt.Errorf("%w: %s", ErrAlreadyExists, relTo)
	}
	parentOK, err := s.store.PrefixExists(ctx, ParentOf(absTo))
	if err != nil {
		return ResourceInfo{}, failed("checking destination parent", err)
	}
	if !parentOK {
		return ResourceInfo{}, fmt.Errorf("%w: %s", ErrFolderNotFound, ParentOf(relTo))
	}

	intent, err := s.journal.Begin(ctx, OpMoveResource, user.ID, absFrom, absTo)
	if err != nil {
		return ResourceInfo{}, err
	}
	var size int64
	if typ == model.ResourceDirectory {
		err = s.moveDirectory(ctx, user, absFrom, absTo, row)
	} else {
		size, err = s.moveFile(ctx, user, absFrom, absTo, row)
	}
	intent.Finish(ctx, err)
	if err != nil {
		return ResourceInfo{}, err
	}

	s.logger.Info("resource moved", "user", user.ID, "kind", kind, "from", absFrom, "to", absTo)
	return s.describe(user, absTo, typ, size), nil
}

// moveFile copies then deletes the object. The size is read before the
// source is deleted.
func (s *ResourceService) moveFile(ctx context.Context, user *model.User, absFrom, absTo string, row *model.Resource) (int64, error) {
	size, err := s.store.StatSize(ctx, absFrom)
	if err != nil {
		return 0, failed("reading source size", err)
	}
	if err := s.store.Copy(ctx, absFrom, absTo); err != nil {
		return 0, failed("copying file", err)
	}
	if err := s.store.Delete(ctx, absFrom); err != nil {
		return 0, failed("deleting source file", err)
	}

	moved, err := s.database.MoveResources(ctx, user.ID, absFrom, absTo)
	if err != nil {
		return 0, failed("moving metadata", err)
	}
	if moved == 0 || row == nil || row.Size != size {
		_, err := s.database.SaveResource(ctx, &model.Resource{
			OwnerID: user.ID,
			Name:    LeafOf(absTo),
			Path:    absTo,
			Size:    size,
			Type:    model.ResourceFile,
		})
		if err != nil {
			return 0, failed("saving file", err)
		}
	}
	return size, nil
}

func (s *ResourceService) moveDirectory(ctx context.Context, user *model.User, absFrom, absTo string, row *model.Resource) error {
	if err := s.store.CopyPrefix(ctx, absFrom+Separator, absTo+Separator); err != nil {
		return failed("copying directory", err)
	}
	if err := s.store.DeletePrefix(ctx, absFrom+Separator); err != nil {
		return failed("deleting source directory", err)
	}

	moved, err := s.database.MoveResources(ctx, user.ID, absFrom, absTo)
	if err != nil {
		return failed("moving metadata", err)
	}
	if moved == 0 || row == nil {
		_, err := s.database.SaveResource(ctx, &model.Resource{
			OwnerID: user.ID,
			Name:    LeafOf(absTo),
			Path:    absTo,
			Type:    model.ResourceDirectory,
		})
		if err != nil {
			return failed("saving directory", err)
		}
	}
	return nil
}
