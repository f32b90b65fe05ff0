package cfs

import (
	"context"

	"cfs-go/internal/model"
)

// Database provides an interface for metadata storage operations.
// Lookups return (nil, nil) when nothing matches.
type Database interface {
	// User operations

	// CreateUser inserts a user. Returns ErrAlreadyExists when the username
	// is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)

	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	// Resource operations

	// FindResourceByPath returns the resource at an exact absolute path.
	FindResourceByPath(ctx context.Context, ownerID int64, path string) (*model.Resource, error)

	// FindResourcesByPaths returns the resources whose path is in paths,
	// keyed by path. Paths without a row are absent from the map.
	FindResourcesByPaths(ctx context.Context, ownerID int64, paths []string) (map[string]*model.Resource, error)

	// SaveResource inserts r, or updates size and type of the row already
	// at (owner, path).
	SaveResource(ctx context.Context, r *model.Resource) (*model.Resource, error)

	// SaveResources saves all rows in a single transaction.
	SaveResources(ctx context.Context, rs []*model.Resource) ([]*model.Resource, error)

	// DeleteResource removes the row at path and every descendant row.
	// Returns the number of rows removed.
	DeleteResource(ctx context.Context, ownerID int64, path string) (int64, error)

	// MoveResources re-paths the row at from and every descendant row to
	// live under to, in one transaction. Stale rows already under to are
	// removed first. Returns the number of rows moved.
	MoveResources(ctx context.Context, ownerID int64, from, to string) (int64, error)

	// ListResources returns the row at path and all descendants, by path.
	ListResources(ctx context.Context, ownerID int64, path string) ([]*model.Resource, error)

	// ReplaceResources swaps the subtree at path for rs in one transaction.
	ReplaceResources(ctx context.Context, ownerID int64, path string, rs []*model.Resource) error

	// Journal operations

	CreateOperation(ctx context.Context, operation string, ownerID int64, source, target string) (*model.Operation, error)
	FinishOperation(ctx context.Context, id int64, status string) error
	ListOperations(ctx context.Context, limit int) ([]*model.Operation, error)
	ListUnfinishedOperations(ctx context.Context) ([]*model.Operation, error)

	// Close closes the database connection.
	Close() error
}
