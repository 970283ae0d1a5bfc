package app_test

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/blogposts/fixtures"
	"github.com/cppla/blogposts/harness"
	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store/storetest"
	"github.com/cppla/blogposts/utils"
)

const seedCount = 5

var h = harness.New(harness.Options{SeedCount: seedCount})

func TestMain(m *testing.M) { os.Exit(harness.Main(m, h)) }

type postList struct {
	Posts []models.Post `json:"posts"`
}

type postBody struct {
	ID      string         `json:"id,omitempty"`
	Title   *string        `json:"title,omitempty"`
	Content *string        `json:"content,omitempty"`
	Author  *models.Author `json:"author,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func findPost(t *testing.T, h *harness.Harness, id string) (models.Post, bool) {
	t.Helper()
	p, found, err := h.Store().FindByID(context.Background(), id)
	require.NoError(t, err)
	return p, found
}

func TestAPI_Seeding(t *testing.T) {
	h.Run(t, "count equals seed size", func(t *testing.T, h *harness.Harness) {
		n, err := h.Store().Count(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(seedCount), n)
	})

	h.Run(t, "seeded posts read back unchanged", func(t *testing.T, h *harness.Harness) {
		for _, want := range h.Seeded() {
			got, found := findPost(t, h, want.ID)
			require.True(t, found)
			storetest.RequireSamePost(t, want, got)
		}
	})
}

func TestAPI_ListPosts(t *testing.T) {
	h.Run(t, "returns every stored post newest first", func(t *testing.T, h *harness.Harness) {
		resp := h.Get(t, "/posts")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body postList
		harness.DecodeJSON(t, resp, &body)

		n, err := h.Store().Count(context.Background())
		require.NoError(t, err)
		require.Len(t, body.Posts, int(n))
		for i := 1; i < len(body.Posts); i++ {
			assert.False(t, body.Posts[i].Created.After(body.Posts[i-1].Created))
		}
	})
}

func TestAPI_GetPost(t *testing.T) {
	h.Run(t, "existing post", func(t *testing.T, h *harness.Harness) {
		want := h.Seeded()[0]
		resp := h.Get(t, "/posts/"+want.ID)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got models.Post
		harness.DecodeJSON(t, resp, &got)
		storetest.RequireSamePost(t, want, got)
	})

	h.Run(t, "unknown id", func(t *testing.T, h *harness.Harness) {
		resp := h.Get(t, "/posts/"+storetest.UnknownID)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAPI_CreatePost(t *testing.T) {
	h.Run(t, "valid payload", func(t *testing.T, h *harness.Harness) {
		in := fixtures.GeneratePostData()
		resp := h.PostJSON(t, "/posts", postBody{Title: &in.Title, Content: &in.Content, Author: &in.Author})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created models.Post
		harness.DecodeJSON(t, resp, &created)
		require.NotEmpty(t, created.ID)
		assert.Equal(t, in.Title, created.Title)
		assert.Equal(t, in.Content, created.Content)
		assert.Equal(t, in.Author, created.Author)

		stored, found := findPost(t, h, created.ID)
		require.True(t, found)
		storetest.RequireSamePost(t, created, stored)

		n, err := h.Store().Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(seedCount+1), n)
	})

	h.Run(t, "empty content is allowed", func(t *testing.T, h *harness.Harness) {
		resp := h.PostJSON(t, "/posts", `{"title":"t","content":"","author":{"firstName":"a","lastName":"b"}}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	for _, field := range []string{"title", "content", "author"} {
		field := field
		h.Run(t, "missing "+field, func(t *testing.T, h *harness.Harness) {
			in := fixtures.GeneratePostData()
			body := postBody{Title: &in.Title, Content: &in.Content, Author: &in.Author}
			switch field {
			case "title":
				body.Title = nil
			case "content":
				body.Content = nil
			case "author":
				body.Author = nil
			}

			resp := h.PostJSON(t, "/posts", body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var env utils.JSONResponse
			harness.DecodeJSON(t, resp, &env)
			assert.Equal(t, `Missing "`+field+`" in request body`, env.Message)

			n, err := h.Store().Count(context.Background())
			require.NoError(t, err)
			assert.Equal(t, int64(seedCount), n)
		})
	}

	h.Run(t, "malformed json", func(t *testing.T, h *harness.Harness) {
		resp := h.PostJSON(t, "/posts", `{"title": "unterminated`)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_UpdatePost(t *testing.T) {
	h.Run(t, "changes only supplied fields", func(t *testing.T, h *harness.Harness) {
		before := h.Seeded()[0]
		resp := h.PutJSON(t, "/posts/"+before.ID, postBody{
			ID:      before.ID,
			Title:   ptr("fofofofofofofof"),
			Content: ptr("futuristic fusion"),
		})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		after, found := findPost(t, h, before.ID)
		require.True(t, found)
		assert.Equal(t, "fofofofofofofof", after.Title)
		assert.Equal(t, "futuristic fusion", after.Content)
		assert.Equal(t, before.Author, after.Author)
		assert.True(t, before.Created.Equal(after.Created))
	})

	h.Run(t, "body id must match path id", func(t *testing.T, h *harness.Harness) {
		seeded := h.Seeded()
		resp := h.PutJSON(t, "/posts/"+seeded[0].ID, postBody{ID: seeded[1].ID, Title: ptr("x")})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		after, _ := findPost(t, h, seeded[0].ID)
		assert.Equal(t, seeded[0].Title, after.Title)
	})

	h.Run(t, "unknown id", func(t *testing.T, h *harness.Harness) {
		resp := h.PutJSON(t, "/posts/"+storetest.UnknownID, postBody{ID: storetest.UnknownID, Title: ptr("x")})
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	h.Run(t, "empty title is rejected", func(t *testing.T, h *harness.Harness) {
		id := h.Seeded()[0].ID
		resp := h.PutJSON(t, "/posts/"+id, postBody{ID: id, Title: ptr("")})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPI_DeletePost(t *testing.T) {
	h.Run(t, "delete then delete again", func(t *testing.T, h *harness.Harness) {
		id := h.Seeded()[0].ID

		resp := h.Delete(t, "/posts/"+id)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		_, found := findPost(t, h, id)
		require.False(t, found)

		resp = h.Delete(t, "/posts/"+id)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		n, err := h.Store().Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(seedCount-1), n)
	})
}

func TestAPI_DropAllIsIdempotent(t *testing.T) {
	h.Run(t, "drop twice", func(t *testing.T, h *harness.Harness) {
		ctx := context.Background()
		for i := 0; i < 2; i++ {
			require.NoError(t, h.Store().DropAll(ctx))

			resp := h.Get(t, "/posts")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var body postList
			harness.DecodeJSON(t, resp, &body)
			require.Empty(t, body.Posts)
		}
	})
}

func TestAPI_Misc(t *testing.T) {
	h.Run(t, "health", func(t *testing.T, h *harness.Harness) {
		resp := h.Get(t, "/health")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	h.Run(t, "stats", func(t *testing.T, h *harness.Harness) {
		resp := h.Get(t, "/stats")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var env struct {
			Data struct {
				PostCount int64 `json:"post_count"`
			} `json:"data"`
		}
		harness.DecodeJSON(t, resp, &env)
		assert.Equal(t, int64(seedCount), env.Data.PostCount)
	})

	h.Run(t, "unknown route", func(t *testing.T, h *harness.Harness) {
		resp := h.Get(t, "/nope")
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		var env utils.JSONResponse
		harness.DecodeJSON(t, resp, &env)
		assert.Equal(t, 40400, env.Code)
	})
}
