package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"socialhub/cache"

	"github.com/gin-gonic/gin"
)

type Limiter interface {
	Allow(ctx context.Context, client string) (cache.Decision, error)
}

// RateLimit applies a shared fixed-window limit per client IP. When the
// counter store is unreachable requests are let through.
func RateLimit(limiter Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		d, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			logger.Warn("rate limiter unavailable", "client_ip", ip, "error", err)
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if err == nil {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		}

		if !d.Allowed {
			retry := int(time.Until(d.ResetAt).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
			logger.Warn("rate limit exceeded", "client_ip", ip, "path", c.Request.URL.Path)
			abort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
