package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfs-go/internal/config"
	"cfs-go/internal/testutil"
)

// runSessionStoreTests exercises the SessionStore contract.
func runSessionStoreTests(t *testing.T, newStore func(t *testing.T, clock *testutil.StubClock) SessionStore) {
	ctx := context.Background()

	newSession := func(clock *testutil.StubClock, token string) *Session {
		now := clock.Now()
		return &Session{Token: token, UserID: 7, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	}

	t.Run("SaveAndGet", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := newStore(t, clock)

		require.NoError(t, store.Save(ctx, newSession(clock, "tok-1")))

		got, err := store.Get(ctx, "tok-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "tok-1", got.Token)
		assert.Equal(t, int64(7), got.UserID)
		assert.True(t, got.ExpiresAt.Equal(clock.Now().Add(time.Hour)))
	})

	t.Run("UnknownToken", func(t *testing.T) {
		store := newStore(t, testutil.FixedClock())

		got, err := store.Get(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Expiry", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := newStore(t, clock)
		require.NoError(t, store.Save(ctx, newSession(clock, "tok-1")))

		clock.Advance(59 * time.Minute)
		got, err := store.Get(ctx, "tok-1")
		require.NoError(t, err)
		assert.NotNil(t, got)

		clock.Advance(time.Minute)
		got, err = store.Get(ctx, "tok-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Delete", func(t *testing.T) {
		clock := testutil.FixedClock()
		store := newStore(t, clock)
		require.NoError(t, store.Save(ctx, newSession(clock, "tok-1")))
		require.NoError(t, store.Save(ctx, newSession(clock, "tok-2")))

		require.NoError(t, store.Delete(ctx, "tok-1"))
		require.NoError(t, store.Delete(ctx, "never-existed"))

		got, err := store.Get(ctx, "tok-1")
		require.NoError(t, err)
		assert.Nil(t, got)
		got, err = store.Get(ctx, "tok-2")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}

func TestMemorySessionStore(t *testing.T) {
	runSessionStoreTests(t, func(t *testing.T, clock *testutil.StubClock) SessionStore {
		return NewMemorySessionStore(clock)
	})
}

func TestBadgerSessionStore(t *testing.T) {
	runSessionStoreTests(t, func(t *testing.T, clock *testutil.StubClock) SessionStore {
		store, err := NewBadgerSessionStore("", clock)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})

	t.Run("RejectsExpiredSession", func(t *testing.T) {
		clock := testutil.FixedClock()
		store, err := NewBadgerSessionStore("", clock)
		require.NoError(t, err)
		defer store.Close()

		s := &Session{Token: "old", UserID: 1, ExpiresAt: clock.Now().Add(-time.Second)}
		assert.Error(t, store.Save(context.Background(), s))
	})

	t.Run("SurvivesReopen", func(t *testing.T) {
		dir := t.TempDir()
		clock := testutil.FixedClock()
		ctx := context.Background()

		store, err := NewBadgerSessionStore(dir, clock)
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, &Session{Token: "tok", UserID: 3, ExpiresAt: clock.Now().Add(time.Hour)}))
		require.NoError(t, store.Close())

		store, err = NewBadgerSessionStore(dir, clock)
		require.NoError(t, err)
		defer store.Close()
		got, err := store.Get(ctx, "tok")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(3), got.UserID)
	})
}

func TestNewSessionStoreFromConfig(t *testing.T) {
	clock := testutil.FixedClock()

	store, err := NewSessionStoreFromConfig(config.AuthConfig{SessionStore: "memory"}, clock)
	require.NoError(t, err)
	assert.IsType(t, &MemorySessionStore{}, store)

	store, err = NewSessionStoreFromConfig(config.AuthConfig{SessionStore: "badger", SessionDir: t.TempDir()}, clock)
	require.NoError(t, err)
	assert.IsType(t, &BadgerSessionStore{}, store)
	require.NoError(t, store.Close())

	_, err = NewSessionStoreFromConfig(config.AuthConfig{SessionStore: "redis"}, clock)
	assert.Error(t, err)
}
