// Package storetest is the behavioral contract every store.Store backend must satisfy.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogposts/fixtures"
	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
)

// UnknownID is well-formed for every backend but never assigned by one.
const UnknownID = "5f0000000000000000000000"

// Factory returns an empty store. It is responsible for registering its own cleanup.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("InsertMany", func(t *testing.T) {
		t.Run("assigns ids and round-trips every field", func(t *testing.T) {
			s := newStore(t)
			in := fixtures.GeneratePosts(3)

			stored, err := s.InsertMany(ctx, in)
			require.NoError(t, err)
			require.Len(t, stored, len(in))

			seen := map[string]bool{}
			for i, p := range stored {
				require.NotEmpty(t, p.ID)
				assert.False(t, seen[p.ID], "duplicate id %s", p.ID)
				seen[p.ID] = true

				got, found, err := s.FindByID(ctx, p.ID)
				require.NoError(t, err)
				require.True(t, found)
				RequireSamePost(t, in[i].WithID(p.ID), got)
			}
		})

		t.Run("defaults created to insertion time", func(t *testing.T) {
			s := newStore(t)
			in := fixtures.GeneratePostData()
			in.Created = time.Time{}

			before := time.Now().Add(-time.Second)
			stored, err := s.InsertMany(ctx, []models.PostInput{in})
			require.NoError(t, err)
			require.Len(t, stored, 1)

			got, found, err := s.FindByID(ctx, stored[0].ID)
			require.NoError(t, err)
			require.True(t, found)
			assert.WithinDuration(t, before, got.Created, 5*time.Second)
		})

		t.Run("rejects the whole batch when one payload is missing a field", func(t *testing.T) {
			s := newStore(t)
			bad := fixtures.GeneratePostData()
			bad.Author.LastName = ""

			_, err := s.InsertMany(ctx, []models.PostInput{fixtures.GeneratePostData(), bad})
			require.Error(t, err)

			var se *store.Error
			assert.True(t, errors.As(err, &se), "got %T", err)
			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve), "got %T", err)
			assert.Equal(t, "author.lastName", ve.Field)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})

		t.Run("accepts empty content", func(t *testing.T) {
			s := newStore(t)
			in := fixtures.GeneratePostData()
			in.Content = ""

			stored, err := s.InsertMany(ctx, []models.PostInput{in})
			require.NoError(t, err)
			got, found, err := s.FindByID(ctx, stored[0].ID)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "", got.Content)
		})
	})

	t.Run("Count", func(t *testing.T) {
		s := newStore(t)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		_, err = fixtures.SeedPostData(ctx, s, fixtures.DefaultSeedCount)
		require.NoError(t, err)

		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, fixtures.DefaultSeedCount, n)
	})

	t.Run("FindAll", func(t *testing.T) {
		t.Run("empty store", func(t *testing.T) {
			s := newStore(t)
			posts, err := s.FindAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, posts)
		})

		t.Run("returns every stored post", func(t *testing.T) {
			s := newStore(t)
			seeded, err := fixtures.SeedPostData(ctx, s, 5)
			require.NoError(t, err)

			posts, err := s.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, posts, len(seeded))

			byID := map[string]models.Post{}
			for _, p := range posts {
				byID[p.ID] = p
			}
			for _, want := range seeded {
				got, ok := byID[want.ID]
				require.True(t, ok, "post %s missing", want.ID)
				RequireSamePost(t, want, got)
			}
		})
	})

	t.Run("FindByID", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{UnknownID, "not-an-id"} {
			_, found, err := s.FindByID(ctx, id)
			require.NoError(t, err, id)
			assert.False(t, found, id)
		}
	})

	t.Run("UpdateByID", func(t *testing.T) {
		t.Run("changes only the supplied fields", func(t *testing.T) {
			s := newStore(t)
			seeded, err := fixtures.SeedPostData(ctx, s, 2)
			require.NoError(t, err)
			target, other := seeded[0], seeded[1]

			title, content := "fofofofofofofof", "futuristic fusion"
			require.NoError(t, s.UpdateByID(ctx, target.ID, models.PostPatch{Title: &title, Content: &content}))

			got, found, err := s.FindByID(ctx, target.ID)
			require.NoError(t, err)
			require.True(t, found)
			want := target
			want.Title, want.Content = title, content
			RequireSamePost(t, want, got)

			untouched, _, err := s.FindByID(ctx, other.ID)
			require.NoError(t, err)
			RequireSamePost(t, other, untouched)
		})

		t.Run("replaces the author as a whole", func(t *testing.T) {
			s := newStore(t)
			seeded, err := fixtures.SeedPostData(ctx, s, 1)
			require.NoError(t, err)

			author := models.Author{FirstName: "Ada", LastName: "Lovelace"}
			require.NoError(t, s.UpdateByID(ctx, seeded[0].ID, models.PostPatch{Author: &author}))

			got, _, err := s.FindByID(ctx, seeded[0].ID)
			require.NoError(t, err)
			assert.Equal(t, author, got.Author)
			assert.Equal(t, seeded[0].Title, got.Title)
		})

		t.Run("empty patch leaves the post unchanged", func(t *testing.T) {
			s := newStore(t)
			seeded, err := fixtures.SeedPostData(ctx, s, 1)
			require.NoError(t, err)

			require.NoError(t, s.UpdateByID(ctx, seeded[0].ID, models.PostPatch{}))
			got, _, err := s.FindByID(ctx, seeded[0].ID)
			require.NoError(t, err)
			RequireSamePost(t, seeded[0], got)
		})

		t.Run("rejects an empty title", func(t *testing.T) {
			s := newStore(t)
			seeded, err := fixtures.SeedPostData(ctx, s, 1)
			require.NoError(t, err)

			empty := ""
			err = s.UpdateByID(ctx, seeded[0].ID, models.PostPatch{Title: &empty})
			var ve *models.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)

			got, _, err := s.FindByID(ctx, seeded[0].ID)
			require.NoError(t, err)
			assert.Equal(t, seeded[0].Title, got.Title)
		})

		t.Run("unknown id", func(t *testing.T) {
			s := newStore(t)
			title := "nothing"
			assert.ErrorIs(t, s.UpdateByID(ctx, UnknownID, models.PostPatch{Title: &title}), store.ErrNotFound)
			assert.ErrorIs(t, s.UpdateByID(ctx, UnknownID, models.PostPatch{}), store.ErrNotFound)
		})
	})

	t.Run("DeleteByID", func(t *testing.T) {
		s := newStore(t)
		seeded, err := fixtures.SeedPostData(ctx, s, 3)
		require.NoError(t, err)

		require.NoError(t, s.DeleteByID(ctx, seeded[0].ID))
		_, found, err := s.FindByID(ctx, seeded[0].ID)
		require.NoError(t, err)
		assert.False(t, found)

		assert.ErrorIs(t, s.DeleteByID(ctx, seeded[0].ID), store.ErrNotFound)
		assert.ErrorIs(t, s.DeleteByID(ctx, UnknownID), store.ErrNotFound)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("DropAll", func(t *testing.T) {
		s := newStore(t)
		_, err := fixtures.SeedPostData(ctx, s, 4)
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			require.NoError(t, s.DropAll(ctx))
			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
			posts, err := s.FindAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, posts)
		}

		// the store stays usable after a drop
		_, err = fixtures.SeedPostData(ctx, s, 1)
		require.NoError(t, err)
	})
}

// RequireSamePost compares two posts field by field, using time equality for Created.
func RequireSamePost(t testing.TB, want, got models.Post) {
	t.Helper()
	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Title, got.Title)
	require.Equal(t, want.Content, got.Content)
	require.Equal(t, want.Author, got.Author)
	require.True(t, want.Created.Equal(got.Created), "created: want %v, got %v", want.Created, got.Created)
}
