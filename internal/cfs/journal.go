package cfs

import (
	"context"
	"fmt"

	"cfs-go/internal/model"
)

// Journal operation names.
const (
	OpCreateDirectory = "CreateDirectory"
	OpDeleteResource  = "DeleteResource"
	OpUploadFiles     = "UploadFiles"
	OpMoveResource    = "MoveResource"
	OpRepair          = "Repair"
	OpReconcile       = "Reconcile"
)

// Journal records an intent before a storage mutation so that a crash
// between the storage and the metadata write can be repaired later.
type Journal struct {
	database Database
	logger   Logger
}

func NewJournal(database Database, logger Logger) *Journal {
	return &Journal{database: database, logger: logger}
}

// Intent is one pending journal entry.
type Intent struct {
	journal *Journal
	op      *model.Operation
}

// Begin records a pending operation. Paths are absolute keys.
func (j *Journal) Begin(ctx context.Context, operation string, ownerID int64, source, target string) (*Intent, error) {
	op, err := j.database.CreateOperation(ctx, operation, ownerID, source, target)
	if err != nil {
		return nil, failed("recording operation", err)
	}
	return &Intent{journal: j, op: op}, nil
}

// Finish marks the intent as succeeded when err is nil, otherwise as
// errored so the reconcile pass picks it up. Finishing uses a context
// detached from cancellation so an aborted request still records.
func (i *Intent) Finish(ctx context.Context, err error) {
	status := model.OperationSuccess
	if err != nil {
		status = model.OperationError
	}
	if ferr := i.journal.database.FinishOperation(context.WithoutCancel(ctx), i.op.ID, status); ferr != nil {
		i.journal.logger.Error("failed to finish operation",
			"id", i.op.ID, "operation", i.op.Operation, "error", ferr)
	}
}

// ID returns the journal row ID.
func (i *Intent) ID() int64 {
	return i.op.ID
}

// Flag records a detected inconsistency that needs a repair pass.
func (j *Journal) Flag(ctx context.Context, ownerID int64, path string) {
	op, err := j.database.CreateOperation(context.WithoutCancel(ctx), OpRepair, ownerID, path, "")
	if err != nil {
		j.logger.Error("failed to flag inconsistency", "path", path, "error", err)
		return
	}
	j.logger.Warn("inconsistency flagged for repair", "id", op.ID, "path", path)
}

// History returns the most recent journal entries, newest first.
func (j *Journal) History(ctx context.Context, limit int) ([]*model.Operation, error) {
	ops, err := j.database.ListOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
