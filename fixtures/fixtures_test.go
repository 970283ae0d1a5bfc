package fixtures_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogposts/fixtures"
	"github.com/cppla/blogposts/store/boltstore"
)

func TestGeneratePostData(t *testing.T) {
	t.Run("always produces a valid payload", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			p := fixtures.GeneratePostData()
			require.NoError(t, p.Validate())
			assert.NotEmpty(t, p.Content)
		}
	})

	t.Run("created lies in the past", func(t *testing.T) {
		now := time.Now()
		for i := 0; i < 100; i++ {
			p := fixtures.GeneratePostData()
			assert.True(t, p.Created.Before(now), "created %v is not before %v", p.Created, now)
			assert.True(t, p.Created.After(now.Add(-366*24*time.Hour)))
		}
	})

	t.Run("title has three words", func(t *testing.T) {
		assert.Len(t, strings.Fields(fixtures.BusinessName()), 3)
	})
}

func TestSeedPostData(t *testing.T) {
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	ctx := context.Background()

	t.Run("seeds the requested number of posts", func(t *testing.T) {
		posts, err := fixtures.SeedPostData(ctx, s, 7)
		require.NoError(t, err)
		assert.Len(t, posts, 7)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 7, n)
		require.NoError(t, s.DropAll(ctx))
	})

	t.Run("defaults to ten posts", func(t *testing.T) {
		_, err := fixtures.SeedPostData(ctx, s, 0)
		require.NoError(t, err)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, fixtures.DefaultSeedCount, n)
		require.NoError(t, s.DropAll(ctx))
	})
}
