package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"socialhub/apperr"
	"socialhub/posts"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts  *posts.Service
	logger *slog.Logger
}

func NewPostHandler(svc *posts.Service, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: svc, logger: logger}
}

type createPostRequest struct {
	Content  string   `json:"content" binding:"required,min=3,max=5000"`
	MediaIDs []string `json:"mediaIds" binding:"max=10"`
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Invalid(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.posts.CreatePost(ctx, c.GetString("userId"), req.Content, req.MediaIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Post created successfully", gin.H{"post": post})
}

func (h *PostHandler) GetAllPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	page, limit = posts.NormalizePage(page, limit)

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.posts.ListPosts(ctx, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Posts fetched", gin.H{
		"posts":       result.Posts,
		"currentPage": result.CurrentPage,
		"totalPages":  result.TotalPages,
		"totalPosts":  result.TotalPosts,
	})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	post, err := h.posts.GetPost(ctx, c.Param("postId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Post fetched", gin.H{"post": post})
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	err := h.posts.DeletePost(ctx, c.Param("postId"), c.GetString("userId"))
	if errors.Is(err, posts.ErrForbidden) {
		// someone else's post is reported exactly like a missing one
		err = posts.ErrNotFound
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Post deleted successfully", nil)
}
