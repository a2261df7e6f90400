package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"socialhub/search"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	search *search.Service
	logger *slog.Logger
}

func NewSearchHandler(svc *search.Service, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{search: svc, logger: logger}
}

func (h *SearchHandler) SearchPosts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	results, err := h.search.Search(ctx, c.Query("query"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Search results", gin.H{"results": results})
}
