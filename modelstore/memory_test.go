package modelstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "m", []byte("payload")))

	got, err := ReadAll(ctx, store, "m")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("original")
	require.NoError(t, store.Put(ctx, "m", data))
	data[0] = 'X' // caller mutation must not leak into the store

	got, err := ReadAll(ctx, store, "m")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)
}

func TestMemoryStoreMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Open(ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "runs/b", nil))
	require.NoError(t, store.Put(ctx, "runs/a", nil))
	require.NoError(t, store.Put(ctx, "other", nil))

	names, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	require.Equal(t, []string{"runs/a", "runs/b"}, names)
}
