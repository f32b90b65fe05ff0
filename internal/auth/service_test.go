package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfs-go/internal/auth"
	"cfs-go/internal/cfs"
	"cfs-go/internal/model"
	"cfs-go/internal/testutil"
)

type failingProvisioner struct{ err error }

func (f failingProvisioner) ProvisionUser(context.Context, *model.User) error { return f.err }

type fixture struct {
	svc      *auth.Service
	env      *testutil.Env
	sessions *auth.MemorySessionStore
	clock    *testutil.StubClock
}

func newFixture(t *testing.T, provisioner auth.NamespaceProvisioner) *fixture {
	t.Helper()
	env := testutil.NewTestEnv(t, cfs.ServiceOptions{})
	if provisioner == nil {
		provisioner = env.Service
	}
	clock := testutil.FixedClock()
	sessions := auth.NewMemorySessionStore(clock)
	svc, err := auth.NewService(env.Database, sessions, provisioner, cfs.NewNopLogger(), clock,
		testutil.NewStubIDGenerator(), auth.Options{SessionTTL: time.Hour, HashCost: 4})
	require.NoError(t, err)
	return &fixture{svc: svc, env: env, sessions: sessions, clock: clock}
}

var validCreds = auth.Credentials{Username: "alice", Password: "Secret1!"}

func TestService_SignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user, namespace and session", func(t *testing.T) {
		f := newFixture(t, nil)

		user, session, err := f.svc.SignUp(ctx, validCreds)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.NotEqual(t, "Secret1!", user.PasswordHash)
		assert.Equal(t, "token-1", session.Token)
		assert.Equal(t, user.ID, session.UserID)
		assert.Equal(t, f.clock.Now().Add(time.Hour), session.ExpiresAt)

		ok, err := f.env.Store.Exists(ctx, f.env.Service.RootFor(user)+"/")
		require.NoError(t, err)
		assert.True(t, ok, "root marker missing")

		// Top-level directories can be created right away.
		_, err = f.env.Service.CreateDirectory(ctx, user, "docs")
		assert.NoError(t, err)
	})

	t.Run("duplicate username", func(t *testing.T) {
		f := newFixture(t, nil)
		_, _, err := f.svc.SignUp(ctx, validCreds)
		require.NoError(t, err)

		_, _, err = f.svc.SignUp(ctx, validCreds)
		assert.ErrorIs(t, err, cfs.ErrAlreadyExists)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		f := newFixture(t, nil)

		_, _, err := f.svc.SignUp(ctx, auth.Credentials{Username: "al", Password: "Secret1!"})
		assert.ErrorIs(t, err, auth.ErrValidation)

		users, err := f.env.Database.ListUsers(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("provisioning failure", func(t *testing.T) {
		boom := errors.New("bucket unreachable")
		f := newFixture(t, failingProvisioner{err: boom})

		_, _, err := f.svc.SignUp(ctx, validCreds)
		assert.ErrorIs(t, err, boom)
	})
}

func TestService_SignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		f := newFixture(t, nil)
		created, _, err := f.svc.SignUp(ctx, validCreds)
		require.NoError(t, err)

		user, session, err := f.svc.SignIn(ctx, validCreds)
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
		assert.Equal(t, "token-2", session.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t, nil)
		_, _, err := f.svc.SignUp(ctx, validCreds)
		require.NoError(t, err)

		_, _, err = f.svc.SignIn(ctx, auth.Credentials{Username: "alice", Password: "Secret2!"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t, nil)

		_, _, err := f.svc.SignIn(ctx, validCreds)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t, nil)

		_, _, err := f.svc.SignIn(ctx, auth.Credentials{Username: "alice"})
		assert.ErrorIs(t, err, auth.ErrValidation)
	})
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session", func(t *testing.T) {
		f := newFixture(t, nil)
		created, session, err := f.svc.SignUp(ctx, validCreds)
		require.NoError(t, err)

		user, err := f.svc.Authenticate(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, created.ID, user.ID)
	})

	t.Run("empty and unknown tokens", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := f.svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, cfs.ErrUnauthorized)
		_, err = f.svc.Authenticate(ctx, "forged")
		assert.ErrorIs(t, err, cfs.ErrUnauthorized)
	})

	t.Run("expired session", func(t *testing.T) {
		f := newFixture(t, nil)
		_, session, err := f.svc.SignUp(ctx, validCreds)
		require.NoError(t, err)

		f.clock.Advance(2 * time.Hour)
		_, err = f.svc.Authenticate(ctx, session.Token)
		assert.ErrorIs(t, err, cfs.ErrUnauthorized)
	})

	t.Run("orphaned session", func(t *testing.T) {
		f := newFixture(t, nil)
		require.NoError(t, f.sessions.Save(ctx, &auth.Session{
			Token: "ghost", UserID: 99, ExpiresAt: f.clock.Now().Add(time.Hour),
		}))

		_, err := f.svc.Authenticate(ctx, "ghost")
		assert.ErrorIs(t, err, cfs.ErrUnauthorized)
	})
}

func TestService_SignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	_, session, err := f.svc.SignUp(ctx, validCreds)
	require.NoError(t, err)

	require.NoError(t, f.svc.SignOut(ctx, session.Token))

	_, err = f.svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, cfs.ErrUnauthorized)
	assert.ErrorIs(t, f.svc.SignOut(ctx, ""), cfs.ErrUnauthorized)
}
