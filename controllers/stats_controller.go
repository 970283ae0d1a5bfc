package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/blogposts/store"
	"github.com/cppla/blogposts/utils"
)

// StatsController provides blog statistics.
type StatsController struct {
	store store.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(s store.Store) *StatsController {
	return &StatsController{store: s}
}

// GetStats returns the number of stored posts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	postCount, err := s.store.Count(ctx.Request.Context())
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to count posts")
		return
	}
	utils.Success(ctx, gin.H{"post_count": postCount})
}
