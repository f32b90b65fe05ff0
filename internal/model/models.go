package model

import "time"

// ResourceType distinguishes files from directories. It is persisted when a
// resource is created and never re-derived from the name.
type ResourceType string

const (
	ResourceFile      ResourceType = "FILE"
	ResourceDirectory ResourceType = "DIRECTORY"
)

// User owns a storage namespace.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Resource is the metadata record of one file or directory.
type Resource struct {
	ID        int64
	OwnerID   int64
	Name      string       // Leaf segment
	Path      string       // Absolute key including the owner root, no trailing slash
	Size      int64        // Zero for directories
	Type      ResourceType // Set at creation
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDir reports whether the resource is a directory.
func (r *Resource) IsDir() bool {
	return r.Type == ResourceDirectory
}

// Operation is one entry of the operation journal. A row is written as
// pending before the storage mutation and finished after the metadata commit.
type Operation struct {
	ID         int64
	Operation  string
	OwnerID    int64
	Source     string
	Target     string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Journal statuses.
const (
	OperationPending  = "pending"
	OperationSuccess  = "success"
	OperationError    = "error"
	OperationRepaired = "repaired"
)

// ObjectInfo describes one key returned by an object store listing.
type ObjectInfo struct {
	Key   string
	Size  int64
	IsDir bool // Directory marker or common prefix
}
