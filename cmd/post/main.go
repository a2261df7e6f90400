// Command post serves the post API, stages lifecycle events in the outbox
// and pushes new posts to live feed clients.
package main

import (
	"context"
	"fmt"
	"os"

	"socialhub/bootstrap"
	"socialhub/database"
	"socialhub/events"
	"socialhub/handlers"
	"socialhub/posts"
	"socialhub/routes"
	"socialhub/server"
	"socialhub/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "post:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logger, err := bootstrap.Init("post", "MONGODB_URI", "RABBITMQ_URL")
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

	postStore := database.NewPostStore(mongo.DB)
	outboxStore := database.NewOutboxStore(mongo.DB)
	if err := postStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("post indexes: %w", err)
	}
	if err := outboxStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("outbox indexes: %w", err)
	}

	rc, err := bootstrap.Redis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	conn := events.NewConnection(cfg.RabbitMQURL, cfg.EventExchange, logger)
	defer conn.Close()
	publisher := events.NewPublisher(conn, logger)

	var tx database.Transactor = database.NoTransaction{}
	if cfg.MongoTransactions {
		tx = database.NewSessionTransactor(mongo.Client)
	}

	var emitter events.Emitter = publisher
	if cfg.OutboxEnabled {
		emitter = events.NewOutbox(outboxStore, nil)
		relay := events.NewRelay(outboxStore, publisher, cfg.OutboxInterval, nil, logger)
		go relay.Run(ctx)
	} else {
		logger.Warn("outbox disabled; events are published directly after each write")
	}

	postSvc := posts.NewService(postStore, rc, emitter, tx, nil, logger)

	hub := websocket.NewHub(cfg.AllowedOrigins, logger)
	go hub.Run(ctx)
	if err := events.NewSubscriber(conn, logger).Subscribe(ctx, events.RoutePostCreated, hub.HandlePostCreated); err != nil {
		return fmt.Errorf("subscribe live feed: %w", err)
	}

	router := routes.SetupPostRouter(
		bootstrap.BackendBase(cfg, rc, logger),
		handlers.NewPostHandler(postSvc, logger),
		hub,
	)
	return server.Run(ctx, cfg.Port, router, logger)
}
