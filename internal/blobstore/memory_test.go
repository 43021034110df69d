package blobstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/careloop/internal/blobstore"
)

func TestMemoryStoreMove(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	store.PutObject("uploads/report.pdf", 42)

	t.Run("Should move the object", func(t *testing.T) {
		err := store.Move(ctx, "uploads/report.pdf", "t/abc/uploads/report.pdf")
		require.NoError(t, err)

		info, err := store.Stat(ctx, "t/abc/uploads/report.pdf")
		require.NoError(t, err)
		assert.EqualValues(t, 42, info.Size)

		_, err = store.Stat(ctx, "uploads/report.pdf")
		assert.ErrorIs(t, err, blobstore.ErrObjectNotFound)
	})

	t.Run("Should fail moving a missing object", func(t *testing.T) {
		err := store.Move(ctx, "uploads/missing.pdf", "t/abc/missing.pdf")
		assert.ErrorIs(t, err, blobstore.ErrObjectNotFound)
	})
}

func TestMemoryStoreListPrefix(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	store.PutObject("t/abc/one.pdf", 1)
	store.PutObject("t/abc/two.pdf", 2)
	store.PutObject("uploads/legacy.pdf", 3)

	scoped, err := store.ListPrefix(ctx, "t/abc/")
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "t/abc/one.pdf", scoped[0].Path)

	all, err := store.ListPrefix(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
