// Package auth implements username/password accounts and cookie sessions.
//
// Sign-up validates the credentials, stores a bcrypt hash, provisions the
// user's storage namespace and opens a session. Sessions are opaque random
// tokens looked up in a SessionStore.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cfs-go/internal/cfs"
	"cfs-go/internal/model"
)

// ErrInvalidCredentials is returned by SignIn for an unknown user or a
// wrong password. The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("invalid username or password")

// DefaultSessionTTL applies when Options.SessionTTL is zero.
const DefaultSessionTTL = 24 * time.Hour

// UserStore is the subset of cfs.Database used for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*model.User, error)
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
}

// NamespaceProvisioner prepares the storage namespace of a new user.
type NamespaceProvisioner interface {
	ProvisionUser(ctx context.Context, user *model.User) error
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	SessionTTL time.Duration
	HashCost   int
}

// Service handles sign-up, sign-in, sign-out and request authentication.
type Service struct {
	users       UserStore
	sessions    SessionStore
	provisioner NamespaceProvisioner
	hasher      *PasswordHasher
	logger      cfs.Logger
	clock       cfs.Clock
	ids         cfs.IDGenerator
	ttl         time.Duration

	// dummyHash is compared against when the user does not exist so both
	// failure paths cost one bcrypt comparison.
	dummyHash string
}

func NewService(users UserStore, sessions SessionStore, provisioner NamespaceProvisioner, logger cfs.Logger, clock cfs.Clock, ids cfs.IDGenerator, opts Options) (*Service, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	hasher := NewPasswordHasher(opts.HashCost)
	dummy, err := hasher.Hash("not-a-password")
	if err != nil {
		return nil, err
	}
	return &Service{
		users:       users,
		sessions:    sessions,
		provisioner: provisioner,
		hasher:      hasher,
		logger:      logger,
		clock:       clock,
		ids:         ids,
		ttl:         opts.SessionTTL,
		dummyHash:   dummy,
	}, nil
}

// SignUp registers a new user and signs them in. A taken username is
// reported as cfs.ErrAlreadyExists.
func (s *Service) SignUp(ctx context.Context, creds Credentials) (*model.User, *Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(creds.Password)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.CreateUser(ctx, creds.Username, hash)
	if err != nil {
		if errors.Is(err, cfs.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%w: username %s is taken", cfs.ErrAlreadyExists, creds.Username)
		}
		return nil, nil, fmt.Errorf("creating user: %w", err)
	}
	if err := s.provisioner.ProvisionUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("provisioning %s: %w", user.Username, err)
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user signed up", "user", user.Username, "id", user.ID)
	return user, session, nil
}

// SignIn checks the credentials and opens a session. The namespace is
// provisioned again, which repairs a sign-up that failed midway.
func (s *Service) SignIn(ctx context.Context, creds Credentials) (*model.User, *Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.users.FindUserByUsername(ctx, creds.Username)
	if err != nil {
		return nil, nil, fmt.Errorf("finding user: %w", err)
	}
	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	ok, err := s.hasher.Verify(hash, creds.Password)
	if err != nil {
		return nil, nil, err
	}
	if user == nil || !ok {
		s.logger.Warn("sign-in rejected", "user", creds.Username)
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.provisioner.ProvisionUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("provisioning %s: %w", user.Username, err)
	}
	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user signed in", "user", user.Username)
	return user, session, nil
}

// SignOut ends the session behind token.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return cfs.ErrUnauthorized
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to its user. Unknown, expired and
// orphaned sessions are cfs.ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, cfs.ErrUnauthorized
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if session == nil {
		return nil, cfs.ErrUnauthorized
	}
	user, err := s.users.FindUserByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, cfs.ErrUnauthorized
	}
	return user, nil
}

// SessionTTL returns the lifetime of new sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.ttl
}

func (s *Service) openSession(ctx context.Context, user *model.User) (*Session, error) {
	now := s.clock.Now()
	session := &Session{
		Token:     s.ids.New(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return session, nil
}
