package boltstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogposts/fixtures"
	"github.com/cppla/blogposts/store"
	"github.com/cppla/blogposts/store/boltstore"
	"github.com/cppla/blogposts/store/storetest"
)

func newStore(t *testing.T) store.Store {
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "posts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close(context.Background())) })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, newStore)
}

func TestStore_ReopenKeepsPosts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "posts.db")

	s, err := boltstore.Open(path)
	require.NoError(t, err)
	seeded, err := fixtures.SeedPostData(ctx, s, 3)
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	s, err = boltstore.Open(path)
	require.NoError(t, err)
	defer s.Close(ctx)
	assert.Equal(t, path, s.Path())

	got, found, err := s.FindByID(ctx, seeded[1].ID)
	require.NoError(t, err)
	require.True(t, found)
	storetest.RequireSamePost(t, seeded[1], got)
}

func TestStore_CanceledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FindAll(ctx)
	var se *store.Error
	assert.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, context.Canceled)
}
