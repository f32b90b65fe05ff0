package cfs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cfs-go/internal/model"
)

// Upload is one file of an upload batch. Name may contain separators when
// a folder is uploaded.
type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// UploadFiles stores a batch of files under the directory at path and
// materializes every missing ancestor directory. The batch is checked in
// full before the first write: any name that already exists, appears
// twice in the batch, or lies below an existing file aborts the whole
// upload with ErrAlreadyExists. Blank and ignored names are skipped.
//
// The result holds one entry per newly created ancestor directory followed
// by the file itself, in upload order.
func (s *ResourceService) UploadFiles(ctx context.Context, user *model.User, path string, files []Upload) ([]ResourceInfo, error) {
	_, dir, err := s.resolve(user, path)
	if err != nil {
		return nil, err
	}

	type target struct {
		key    string
		upload Upload
	}
	var targets []target
	seen := make(map[string]bool)
	ancestors := make(map[string]bool)
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		name, err := CleanPath(f.Name)
		if err != nil {
			return nil, err
		}
		if s.filter != nil && s.filter.Ignored(name) {
			s.logger.Debug("upload skipped by ignore rules", "name", name)
			continue
		}
		key := Join(dir, name)
		if seen[key] {
			return nil, fmt.Errorf("%w: %s appears twice in the upload", ErrAlreadyExists, name)
		}
		seen[key] = true
		if err := s.checkAncestors(ctx, user, key, ancestors); err != nil {
			return nil, err
		}
		if _, ok := ancestors[key]; ok {
			return nil, fmt.Errorf("%w: %s is also a folder in the upload", ErrAlreadyExists, name)
		}
		taken, err := s.occupied(ctx, key)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
		ancestors[key] = true
		targets = append(targets, target{key: key, upload: f})
	}
	if len(targets) == 0 {
		return []ResourceInfo{}, nil
	}

	intent, err := s.journal.Begin(ctx, OpUploadFiles, user.ID, dir, "")
	if err != nil {
		return nil, err
	}

	var infos []ResourceInfo
	for _, t := range targets {
		if err = s.store.Put(ctx, t.key, t.upload.Content, t.upload.Size); err != nil {
			err = failed("storing "+t.key, err)
			break
		}
		var created []*model.Resource
		created, err = s.materialize(ctx, user, t.key, model.ResourceFile, t.upload.Size, true)
		if err != nil {
			break
		}
		for _, r := range created {
			if r.Path == t.key {
				continue
			}
			infos = append(infos, s.describe(user, r.Path, r.Type, r.Size))
		}
		infos = append(infos, s.describe(user, t.key, model.ResourceFile, t.upload.Size))
	}
	intent.Finish(ctx, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("files uploaded", "user", user.ID, "dir", dir, "count", len(targets))
	return infos, nil
}

// materialize makes sure a metadata row exists for abs and every directory
// between the user root and abs. All rows are looked up with one query and
// written with one batch. Intermediate segments are directories; the last
// segment gets leafType and size. When markers is set, missing
// intermediate directories also get a storage marker so they survive the
// deletion of their only file.
//
// It returns the rows that did not exist before. An existing file row at
// abs is updated to the new size but not returned.
func (s *ResourceService) materialize(ctx context.Context, user *model.User, abs string, leafType model.ResourceType, size int64, markers bool) ([]*model.Resource, error) {
	root := s.RootFor(user)
	rel := strings.TrimPrefix(abs, root+Separator)
	if rel == abs || rel == "" {
		return nil, fmt.Errorf("%w: %s is outside %s", ErrInvalidPath, abs, root)
	}

	segments := strings.Split(rel, Separator)
	paths := make([]string, len(segments))
	current := root
	for i, seg := range segments {
		current = Join(current, seg)
		paths[i] = current
	}

	existing, err := s.database.FindResourcesByPaths(ctx, user.ID, paths)
	if err != nil {
		return nil, failed("finding ancestors", err)
	}

	var pending, created []*model.Resource
	last := len(paths) - 1
	for i, p := range paths {
		if row, ok := existing[p]; ok {
			if i < last && row.Type == model.ResourceFile {
				return nil, fmt.Errorf("%w: %s is a file", ErrAlreadyExists, strings.TrimPrefix(p, root+Separator))
			}
			if i == last && leafType == model.ResourceFile && row.Size != size {
				row.Size = size
				pending = append(pending, row)
			}
			continue
		}
		r := &model.Resource{
			OwnerID: user.ID,
			Name:    segments[i],
			Path:    p,
			Type:    model.ResourceDirectory,
		}
		if i == last {
			r.Type = leafType
			if leafType == model.ResourceFile {
				r.Size = size
			}
		} else if markers {
			if err := s.store.PutEmpty(ctx, p+Separator); err != nil {
				return nil, failed("creating directory marker", err)
			}
		}
		pending = append(pending, r)
		created = append(created, r)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	if _, err := s.database.SaveResources(ctx, pending); err != nil {
		return nil, failed("saving resources", err)
	}
	return created, nil
}

// checkAncestors fails with ErrAlreadyExists when a directory on the way
// from the user root to abs is stored as a file or is a file of the same
// batch. seen maps checked keys to whether they are files.
func (s *ResourceService) checkAncestors(ctx context.Context, user *model.User, abs string, seen map[string]bool) error {
	root := s.RootFor(user)
	rel := strings.TrimPrefix(abs, root+Separator)
	segments := strings.Split(rel, Separator)
	current := root
	for _, seg := range segments[:len(segments)-1] {
		current = Join(current, seg)
		isFile, ok := seen[current]
		if !ok {
			var err error
			isFile, err = s.store.Exists(ctx, current)
			if err != nil {
				return failed("checking ancestor", err)
			}
			seen[current] = isFile
		}
		if isFile {
			return fmt.Errorf("%w: %s is a file", ErrAlreadyExists, strings.TrimPrefix(current, root+Separator))
		}
	}
	return nil
}
