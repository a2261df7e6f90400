// Command identity serves registration, login and token refresh.
package main

import (
	"context"
	"fmt"
	"os"

	"socialhub/accounts"
	"socialhub/bootstrap"
	"socialhub/database"
	"socialhub/handlers"
	"socialhub/routes"
	"socialhub/server"
	"socialhub/tokens"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "identity:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logger, err := bootstrap.Init("identity", "JWT_SECRET", "MONGODB_URI")
	if err != nil {
		return err
	}

	ctx, stop := server.NotifyContext(context.Background())
	defer stop()

	mongo, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		return err
	}
	defer mongo.Disconnect(context.Background())

	accountStore := database.NewAccountStore(mongo.DB)
	refreshStore := database.NewRefreshTokenStore(mongo.DB)
	if err := accountStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("account indexes: %w", err)
	}
	if err := refreshStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("refresh token indexes: %w", err)
	}

	rc, err := bootstrap.Redis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	tokenSvc := tokens.NewService(refreshStore, accountStore, tokens.Options{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	accountSvc := accounts.NewService(accountStore, tokenSvc, nil, logger)

	router := routes.SetupIdentityRouter(
		bootstrap.BackendBase(cfg, rc, logger),
		handlers.NewAuthHandler(accountSvc, tokenSvc, logger),
	)
	return server.Run(ctx, cfg.Port, router, logger)
}
