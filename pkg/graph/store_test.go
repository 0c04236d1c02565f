package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	g := New("test")
	id, err := store.Create(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, g.ID, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Same(t, g, got)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)

	require.NoError(t, store.Drop(ctx, id))

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrGraphNotFound)

	err = store.Drop(ctx, id)
	assert.ErrorIs(t, err, ErrGraphNotFound)
}

func TestMemoryStoreGetUnknown(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGraphNotFound)
}
