// Command media stores uploads and removes the media of deleted posts.
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
	"socialhub/media"
	"socialhub/routes"
	"socialhub/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "media:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, logger, err := bootstrap.Init("media", "MONGODB_URI", "RABBITMQ_URL", "CLOUDINARY_URL")
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

	mediaStore := database.NewMediaStore(mongo.DB)
	if err := mediaStore.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("media indexes: %w", err)
	}

	rc, err := bootstrap.Redis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rc.Close()

	blobs, err := media.NewCloudinaryStore(cfg.CloudinaryURL, cfg.MediaFolder)
	if err != nil {
		return err
	}
	mediaSvc := media.NewService(mediaStore, blobs, cfg.MaxUploadBytes, nil, logger)

	conn := events.NewConnection(cfg.RabbitMQURL, cfg.EventExchange, logger)
	defer conn.Close()
	janitor := consumers.NewMediaJanitor(mediaStore, blobs, logger)
	if err := events.NewSubscriber(conn, logger).Subscribe(ctx, events.RoutePostDeleted, janitor.HandlePostDeleted); err != nil {
		return fmt.Errorf("subscribe %s: %w", events.RoutePostDeleted, err)
	}

	router := routes.SetupMediaRouter(
		bootstrap.BackendBase(cfg, rc, logger),
		handlers.NewMediaHandler(mediaSvc, cfg.MaxUploadBytes, logger),
	)
	return server.Run(ctx, cfg.Port, router, logger)
}
