// Package bootstrap holds the startup steps the service binaries share.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"socialhub/cache"
	"socialhub/config"
	"socialhub/logging"
	"socialhub/middleware"
	"socialhub/routes"

	"github.com/gin-gonic/gin"
)

// Backends allow this many requests per second per client IP on top of the
// gateway's own limit.
const (
	backendLimit  = 10
	backendWindow = time.Second
)

// Init loads configuration and builds the logger for service.
func Init(service string, required ...string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(service, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Require(required...); err != nil {
		return nil, nil, err
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	logger.Info("starting", "port", cfg.Port, "gin_mode", gin.Mode())
	return cfg, logger, nil
}

// Redis connects the shared cache and checks it answers.
func Redis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cache.Redis, error) {
	rc, err := cache.NewRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		rc.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis")
	return rc, nil
}

// BackendBase is the router base of a backend service: a short per-second
// limit everywhere and the sensitive-endpoint limit from configuration.
func BackendBase(cfg *config.Config, counter cache.Counter, logger *slog.Logger) routes.Base {
	prefix := "rl:" + cfg.Service
	general := cache.NewRateLimiter(counter, prefix, backendLimit, backendWindow, nil)
	sensitive := cache.NewRateLimiter(counter, prefix+":sensitive", cfg.SensitiveLimitMax, cfg.SensitiveLimitSpan, nil)
	return routes.Base{
		Service:        cfg.Service,
		Logger:         logger,
		TrustedProxies: cfg.TrustedProxies,
		General:        middleware.RateLimit(general, logger),
		Sensitive:      middleware.RateLimit(sensitive, logger),
	}
}
