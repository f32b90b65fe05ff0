package cfs

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds returned by ResourceService. Callers match them with errors.Is.
var (
	ErrFileNotFound     = errors.New("file not found")
	ErrFolderNotFound   = errors.New("folder not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidPath      = errors.New("invalid path")
	ErrOperationFailed  = errors.New("operation failed")
	ErrUnauthorized     = errors.New("unauthorized")
)

// ErrObjectNotFound is returned by ObjectStore implementations when a key
// does not exist. The engine translates it into ErrFileNotFound or
// ErrFolderNotFound at the point of the check.
var ErrObjectNotFound = errors.New("object not found")

// failed wraps an adapter error as ErrOperationFailed, keeping the cause.
func failed(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOperationFailed, action, err)
}

// IsRetryable reports whether err is an ErrOperationFailed caused by a
// timeout, which a client may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOperationFailed) && errors.Is(err, context.DeadlineExceeded)
}

// notFound picks the not-found kind for a user-relative path that exists
// nowhere. The message reaches clients.
func notFound(rel string) error {
	if IsFile(LeafOf(Separator + rel)) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, rel)
	}
	return fmt.Errorf("%w: %s", ErrFolderNotFound, rel)
}
