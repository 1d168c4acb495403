package state

import (
	"context"
	"testing"
	"time"

	"github.com/marcogenualdo/wxwork-bridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "authflow:f1:state", []byte("abc"), time.Minute))

	value, err := store.Get(ctx, "authflow:f1:state")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", []byte("abc"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := store.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "key", []byte("abc"), time.Minute))
	require.NoError(t, store.Delete(ctx, "key"))

	_, err := store.Get(ctx, "key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	original := []byte("abc")
	require.NoError(t, store.Set(ctx, "key", original, time.Minute))
	original[0] = 'x'

	value, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), value)
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.StateConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = New(config.StateConfig{Backend: "redis"})
	assert.Error(t, err, "redis backend without redis config must fail")

	_, err = New(config.StateConfig{Backend: "etcd"})
	assert.Error(t, err)
}
