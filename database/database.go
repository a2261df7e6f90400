package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

const (
	AccountsCollection      = "accounts"
	RefreshTokensCollection = "refresh_tokens"
	PostsCollection         = "posts"
	SearchCollection        = "search_posts"
	MediaCollection         = "media"
	OutboxCollection        = "outbox"
)

type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect dials MongoDB and pings it, retrying with exponential backoff for
// up to three attempts.
func Connect(ctx context.Context, uri, dbName string, logger *slog.Logger) (*Mongo, error) {
	var client *mongo.Client
	attempt := 0

	op := func() error {
		attempt++
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		c, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
		if err != nil {
			return err
		}
		if err := c.Ping(connectCtx, nil); err != nil {
			_ = c.Disconnect(context.Background())
			return err
		}
		client = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("mongodb connection attempt failed", "attempt", attempt, "retry_in", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	logger.Info("connected to mongodb", "database", dbName)
	return &Mongo{Client: client, DB: client.Database(dbName)}, nil
}

func (m *Mongo) Disconnect(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.Client.Disconnect(ctx)
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
