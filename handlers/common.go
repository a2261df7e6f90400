// Package handlers holds the gin handlers of the backend services.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"socialhub/apperr"
	"socialhub/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const requestTimeout = 10 * time.Second

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(apperr.JSONFieldName)
	}
}

func respond(c *gin.Context, status int, message string, fields gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, message := apperr.Public(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetHeader(middleware.RequestIDHeader),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"success": false, "message": message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}

// Health reports liveness for every service.
func Health(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service, "time": time.Now().Unix()})
	}
}
