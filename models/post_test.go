package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() PostInput {
	return PostInput{
		Title:   "Quiet Harbor Labs",
		Content: "",
		Author:  Author{FirstName: "Ada", LastName: "Lovelace"},
	}
}

func TestPostInput_Validate(t *testing.T) {
	require.NoError(t, validInput().Validate())

	cases := map[string]struct {
		mutate func(*PostInput)
		field  string
	}{
		"title":      {func(in *PostInput) { in.Title = "" }, "title"},
		"first name": {func(in *PostInput) { in.Author.FirstName = "" }, "author.firstName"},
		"last name":  {func(in *PostInput) { in.Author.LastName = "" }, "author.lastName"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			var ve *ValidationError
			require.True(t, errors.As(in.Validate(), &ve))
			assert.Equal(t, tc.field, ve.Field)
			assert.Equal(t, MsgRequired, ve.Message)
			assert.Equal(t, "invalid post: "+tc.field+" is required", ve.Error())
		})
	}
}

func TestPostInput_Normalize(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 789123456, time.FixedZone("CET", 3600))

	in := validInput().Normalize(now)
	assert.Equal(t, time.Date(2024, 2, 3, 3, 5, 6, 789000000, time.UTC), in.Created)
	assert.Equal(t, time.UTC, in.Created.Location())

	supplied := validInput()
	supplied.Created = time.Date(2020, 1, 1, 0, 0, 0, 1500000, time.UTC)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 1000000, time.UTC), supplied.Normalize(now).Created)
}

func TestPostInput_WithID(t *testing.T) {
	in := validInput()
	p := in.WithID("abc")
	assert.Equal(t, Post{ID: "abc", Title: in.Title, Content: in.Content, Author: in.Author, Created: in.Created}, p)
}

func TestPostPatch(t *testing.T) {
	post := Post{ID: "abc", Title: "old", Content: "old content", Author: Author{FirstName: "A", LastName: "B"}}

	empty := PostPatch{}
	assert.True(t, empty.IsEmpty())
	assert.NoError(t, empty.Validate())
	assert.Equal(t, post, empty.Apply(post))

	title, content := "fofofofofofofof", "futuristic fusion"
	patch := PostPatch{Title: &title, Content: &content}
	assert.False(t, patch.IsEmpty())
	require.NoError(t, patch.Validate())
	got := patch.Apply(post)
	assert.Equal(t, "fofofofofofofof", got.Title)
	assert.Equal(t, "futuristic fusion", got.Content)
	assert.Equal(t, post.Author, got.Author)
	assert.Equal(t, "abc", got.ID)

	author := Author{FirstName: "C", LastName: "D"}
	assert.Equal(t, author, PostPatch{Author: &author}.Apply(post).Author)

	blank := ""
	var ve *ValidationError
	require.True(t, errors.As(PostPatch{Title: &blank}.Validate(), &ve))
	assert.Equal(t, "title", ve.Field)

	// content may be cleared
	assert.NoError(t, PostPatch{Content: &blank}.Validate())

	require.True(t, errors.As(PostPatch{Author: &Author{FirstName: "C"}}.Validate(), &ve))
	assert.Equal(t, "author.lastName", ve.Field)
}
