// Command search indexes post events and answers full-text queries.
package main

import (
	"context"
	"fmt"
	"os"

	"socialhub/bootstrap"
	"socialhub/consumers"
	"socialhub/database"
	"socialhub/events"
	"socialhub/handlers"
	"socialhub/routes"
	"socialhub/search"
	"socialhub/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "search:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logger, err := bootstrap.Init("search", "MONGODB_URI", "RABBITMQ_URL")
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

	searchStore := database.NewSearchStore(mongo.DB)
	if err := searchStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("search indexes: %w", err)
	}

	rc, err := bootstrap.Redis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	searchSvc := search.NewService(searchStore, rc, logger)

	conn := events.NewConnection(cfg.RabbitMQURL, cfg.EventExchange, logger)
	defer conn.Close()
	subscriber := events.NewSubscriber(conn, logger)
	indexer := consumers.NewSearchIndexer(searchStore, searchSvc, logger)
	if err := subscriber.Subscribe(ctx, events.RoutePostCreated, indexer.HandlePostCreated); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.RoutePostCreated, err)
	}
	if err := subscriber.Subscribe(ctx, events.RoutePostDeleted, indexer.HandlePostDeleted); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.RoutePostDeleted, err)
	}

	router := routes.SetupSearchRouter(
		bootstrap.BackendBase(cfg, rc, logger),
		handlers.NewSearchHandler(searchSvc, logger),
	)
	return server.Run(ctx, cfg.Port, router, logger)
}
