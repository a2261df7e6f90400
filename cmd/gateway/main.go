// Command gateway is the single public entry point. It rate limits,
// authenticates and forwards /v1 traffic to the backend services.
package main

import (
	"context"
	"fmt"
	"os"

	"socialhub/bootstrap"
	"socialhub/cache"
	"socialhub/gateway"
	"socialhub/middleware"
	"socialhub/routes"
	"socialhub/server"
	"socialhub/tokens"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logger, err := bootstrap.Init("gateway", "JWT_SECRET", "REDIS_URL")
	if err != nil {
		return err
	}

	var table []gateway.Route
	if cfg.GatewayRoutesFile != "" {
		table, err = gateway.LoadRoutes(cfg.GatewayRoutesFile)
	} else {
		table, err = gateway.DefaultRoutes(cfg)
	}
	if err != nil {
		return err
	}
	for _, r := range table {
		logger.Info("route", "prefix", r.Prefix, "upstream", r.Upstream, "protected", r.Protected)
	}

	ctx, stop := server.NotifyContext(context.Background())
	defer stop()

	rc, err := bootstrap.Redis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	limiter := cache.NewRateLimiter(rc, "rl:gateway", cfg.RateLimitMax, cfg.RateLimitWindow, nil)
	gw := gateway.New(table, tokens.NewVerifier(cfg.JWTSecret, nil), logger)

	router := routes.SetupGatewayRouter(routes.Base{
		Service:        cfg.Service,
		Logger:         logger,
		TrustedProxies: cfg.GatewayTrustedProxies,
		General:        middleware.RateLimit(limiter, logger),
	}, gw, cfg.AllowedOrigins)
	return server.Run(ctx, cfg.Port, router, logger)
}
