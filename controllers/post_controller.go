package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
	"github.com/cppla/blogposts/utils"
)

// PostController manages CRUD operations for posts.
type PostController struct {
	store store.Store
}

// NewPostController creates a new PostController instance.
func NewPostController(s store.Store) *PostController {
	return &PostController{store: s}
}

type createPostRequest struct {
	Title   *string        `json:"title"`
	Content *string        `json:"content"`
	Author  *models.Author `json:"author"`
	Created *time.Time     `json:"created"`
}

// input checks that every required key is present, then that the values are valid.
func (r createPostRequest) input() (models.PostInput, error) {
	switch {
	case r.Title == nil:
		return models.PostInput{}, &models.ValidationError{Field: "title", Message: models.MsgRequired}
	case r.Content == nil:
		return models.PostInput{}, &models.ValidationError{Field: "content", Message: models.MsgRequired}
	case r.Author == nil:
		return models.PostInput{}, &models.ValidationError{Field: "author", Message: models.MsgRequired}
	}
	in := models.PostInput{
		Title:   *r.Title,
		Content: *r.Content,
		Author:  *r.Author,
	}
	if r.Created != nil {
		in.Created = *r.Created
	}
	return in, in.Validate()
}

type updatePostRequest struct {
	ID *string `json:"id"`
	models.PostPatch
}

// ListPosts returns every post, newest first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	posts, err := p.store.FindAll(ctx.Request.Context())
	if err != nil {
		p.fail(ctx, err, 50020, "failed to list posts")
		return
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Created.After(posts[j].Created)
	})
	ctx.JSON(http.StatusOK, gin.H{"posts": posts})
}

// GetPost returns a single post.
func (p *PostController) GetPost(ctx *gin.Context) {
	post, found, err := p.store.FindByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		p.fail(ctx, err, 50021, "failed to load post")
		return
	}
	if !found {
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
		return
	}
	ctx.JSON(http.StatusOK, post)
}

// CreatePost stores a new post and returns it with its assigned id.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req createPostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	in, err := req.input()
	if err != nil {
		p.fail(ctx, err, 50022, "failed to create post")
		return
	}

	posts, err := p.store.InsertMany(ctx.Request.Context(), []models.PostInput{in})
	if err != nil {
		p.fail(ctx, err, 50022, "failed to create post")
		return
	}
	ctx.JSON(http.StatusCreated, posts[0])
}

// UpdatePost applies the supplied fields to an existing post. The body id must match the path id.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req updatePostRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}

	postID := ctx.Param("id")
	if req.ID == nil || *req.ID != postID {
		bodyID := ""
		if req.ID != nil {
			bodyID = *req.ID
		}
		utils.Error(ctx, http.StatusBadRequest, 40022,
			fmt.Sprintf("request path id (%s) and request body id (%s) must match", postID, bodyID))
		return
	}

	if err := p.store.UpdateByID(ctx.Request.Context(), postID, req.PostPatch); err != nil {
		p.fail(ctx, err, 50023, "failed to update post")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// DeletePost removes a post. Deleting an id that no longer exists answers 404.
func (p *PostController) DeletePost(ctx *gin.Context) {
	if err := p.store.DeleteByID(ctx.Request.Context(), ctx.Param("id")); err != nil {
		p.fail(ctx, err, 50024, "failed to delete post")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// fail maps store and validation errors onto the response envelope.
// Anything unexpected is attached to the gin context for the request logger and answered with a 500.
func (p *PostController) fail(ctx *gin.Context, err error, code int, message string) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.Error(ctx, http.StatusBadRequest, 40021, validationMessage(ve))
	case errors.Is(err, store.ErrNotFound):
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
	default:
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, code, message)
	}
}

func validationMessage(ve *models.ValidationError) string {
	if ve.Message == models.MsgRequired {
		return fmt.Sprintf("Missing %q in request body", ve.Field)
	}
	return fmt.Sprintf("%q %s", ve.Field, ve.Message)
}
