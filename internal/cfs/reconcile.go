package cfs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cfs-go/internal/model"
)

// ReconcileReport summarizes a reconcile pass.
type ReconcileReport struct {
	Operations int // Journal entries repaired
	Rebuilt    int // Subtrees rebuilt from storage
	Rows       int // Metadata rows written
}

// Reconcile repairs the metadata of every journal entry that never
// finished cleanly. Each affected path is rebuilt from a storage listing,
// which is the source of truth for structure.
func (s *ResourceService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	ops, err := s.database.ListUnfinishedOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing unfinished operations: %w", err)
	}

	start := s.clock.Now()
	report := &ReconcileReport{}
	var errs []error
	for _, op := range ops {
		rows, rebuilt, err := s.repairOperation(ctx, op)
		if err != nil {
			errs = append(errs, fmt.Errorf("operation %d: %w", op.ID, err))
			continue
		}
		if err := s.database.FinishOperation(ctx, op.ID, model.OperationRepaired); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation %d: %w", op.ID, err))
			continue
		}
		report.Operations++
		report.Rebuilt += rebuilt
		report.Rows += rows
		s.logger.Info("operation repaired", "id", op.ID, "operation", op.Operation, "rows", rows)
	}
	s.logger.Info("reconcile finished",
		"operations", report.Operations, "failed", len(errs), "elapsed", s.clock.Now().Sub(start))
	return report, errors.Join(errs...)
}

func (s *ResourceService) repairOperation(ctx context.Context, op *model.Operation) (rows, rebuilt int, err error) {
	for _, p := range []string{op.Source, op.Target} {
		if p == "" {
			continue
		}
		n, err := s.rebuild(ctx, op.OwnerID, p)
		if err != nil {
			return rows, rebuilt, err
		}
		rows += n
		rebuilt++
	}
	return rows, rebuilt, nil
}

// ReconcileUser rebuilds the whole metadata namespace of user from storage.
func (s *ResourceService) ReconcileUser(ctx context.Context, user *model.User) (*ReconcileReport, error) {
	intent, err := s.journal.Begin(ctx, OpReconcile, user.ID, s.RootFor(user), "")
	if err != nil {
		return nil, err
	}
	n, err := s.rebuild(ctx, user.ID, s.RootFor(user))
	intent.Finish(ctx, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("namespace reconciled", "user", user.Username, "rows", n)
	return &ReconcileReport{Rebuilt: 1, Rows: n}, nil
}

// rebuild replaces the metadata subtree at abs with rows derived from the
// objects stored there, then materializes the missing ancestors of abs.
// Returns the number of rows written.
func (s *ResourceService) rebuild(ctx context.Context, ownerID int64, abs string) (int, error) {
	user := &model.User{ID: ownerID}
	root := s.RootFor(user)
	if abs != root && !strings.HasPrefix(abs, root+Separator) {
		return 0, fmt.Errorf("%w: %s is outside %s", ErrInvalidPath, abs, root)
	}

	rows := make(map[string]*model.Resource)
	add := func(p string, typ model.ResourceType, size int64) {
		if p == root || !strings.HasPrefix(p, root+Separator) {
			return
		}
		if existing, ok := rows[p]; ok && existing.Type == model.ResourceFile {
			return
		}
		rows[p] = &model.Resource{OwnerID: ownerID, Name: LeafOf(p), Path: p, Size: size, Type: typ}
	}

	isFile, err := s.store.Exists(ctx, abs)
	if err != nil {
		return 0, failed("checking object", err)
	}
	if isFile {
		size, err := s.store.StatSize(ctx, abs)
		if err != nil {
			return 0, failed("reading size", err)
		}
		add(abs, model.ResourceFile, size)
	}

	items, err := s.store.ListAll(ctx, abs+Separator)
	if err != nil {
		return 0, failed("listing objects", err)
	}
	for _, item := range items {
		key := strings.TrimSuffix(item.Key, Separator)
		if key == abs {
			add(abs, model.ResourceDirectory, 0)
			continue
		}
		// Every prefix between abs and the key is an implied directory.
		for dir := abs; ; {
			add(dir, model.ResourceDirectory, 0)
			next := strings.IndexByte(key[len(dir)+1:], '/')
			if next < 0 {
				break
			}
			dir = key[:len(dir)+1+next]
		}
		if item.IsDir {
			add(key, model.ResourceDirectory, 0)
		} else {
			add(key, model.ResourceFile, item.Size)
		}
	}

	list := make([]*model.Resource, 0, len(rows))
	for _, r := range rows {
		list = append(list, r)
	}
	if err := s.database.ReplaceResources(ctx, ownerID, abs, list); err != nil {
		return 0, failed("replacing metadata", err)
	}

	if abs != root && len(list) > 0 {
		if _, err := s.materialize(ctx, user, abs, rows[abs].Type, rows[abs].Size, false); err != nil {
			return 0, err
		}
	}
	return len(list), nil
}
