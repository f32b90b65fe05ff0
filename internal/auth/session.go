package auth

import (
	"context"
	"time"
)

// Session binds an opaque token to a user until ExpiresAt.
type Session struct {
	Token     string    `json:"-"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists sessions by token.
type SessionStore interface {
	// Save stores s until s.ExpiresAt.
	Save(ctx context.Context, s *Session) error

	// Get returns the session for token, or (nil, nil) when it does not
	// exist or has expired.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes the session. Deleting a missing token is not an error.
	Delete(ctx context.Context, token string) error

	Close() error
}
