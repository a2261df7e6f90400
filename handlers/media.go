package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"socialhub/media"

	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	media    *media.Service
	maxBytes int64
	logger   *slog.Logger
}

func NewMediaHandler(svc *media.Service, maxBytes int64, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{media: svc, maxBytes: maxBytes, logger: logger}
}

func (h *MediaHandler) Upload(c *gin.Context) {
	// room for the multipart framing around the file
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "message": "File too large"})
			return
		}
		badRequest(c, "No file found. Please add a file and try again!")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
	defer cancel()

	asset, err := h.media.Upload(ctx, media.Upload{
		OwnerID:  c.GetString("userId"),
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "Media uploaded successfully", gin.H{
		"mediaId": asset.ID.Hex(),
		"url":     asset.URL,
	})
}

func (h *MediaHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	assets, err := h.media.List(ctx, c.GetString("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Media fetched", gin.H{"media": assets})
}
