package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "curator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertUserByGoogleID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.UpsertUserByGoogleID(ctx, &User{
		GoogleID:  "g-123",
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)

	updated, err := store.UpsertUserByGoogleID(ctx, &User{
		GoogleID:        "g-123",
		Email:           "ada@analytical.engine",
		FirstName:       "Ada",
		ProfileImageURL: "https://example.com/ada.png",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "ada@analytical.engine", updated.Email)
	assert.Empty(t, updated.LastName)

	got, err := store.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ada.png", got.ProfileImageURL)

	_, err = store.UpsertUserByGoogleID(ctx, &User{})
	assert.Error(t, err)
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.UpsertUserByGoogleID(ctx, &User{GoogleID: "g-1"})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.CreateSession(ctx, &Session{
		ID:        "live",
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, store.CreateSession(ctx, &Session{
		ID:        "stale",
		UserID:    user.ID,
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	}))

	got, err := store.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.WithinDuration(t, now.Add(time.Hour), got.ExpiresAt, time.Second)

	_, err = store.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	removed, err := store.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	require.NoError(t, store.DeleteSession(ctx, "live"))
	_, err = store.GetSession(ctx, "live")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, store.DeleteSession(ctx, "live"))
}

func TestCreateSessionRequiresUser(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	err := store.CreateSession(context.Background(), &Session{
		ID:        "orphan",
		UserID:    "nobody",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	})
	assert.Error(t, err)
}
