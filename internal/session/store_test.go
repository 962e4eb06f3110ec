package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	s := New("alice", "tok", time.Hour)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "tok", s.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, time.Second)
	assert.NotEqual(t, s.ID, New("alice", "tok", time.Hour).ID)
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := New("alice", "tok", time.Hour)

	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "unknown"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	live := Session{ID: "live", Username: "alice", ExpiresAt: now.Add(time.Minute)}
	dead := Session{ID: "dead", Username: "bob", ExpiresAt: now}
	require.NoError(t, store.Save(ctx, live))
	require.NoError(t, store.Save(ctx, dead))

	_, err := store.Get(ctx, "dead")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, store.Prune())
	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Prune())
	_, err = store.Get(ctx, "live")
	assert.ErrorIs(t, err, ErrNotFound)
}
