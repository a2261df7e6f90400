package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs fn so that every store call made with the context it
// receives commits or aborts together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SessionTransactor uses multi-document transactions, which need a replica
// set or sharded cluster.
type SessionTransactor struct {
	client *mongo.Client
}

func NewSessionTransactor(client *mongo.Client) *SessionTransactor {
	return &SessionTransactor{client: client}
}

func (t *SessionTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// NoTransaction runs fn directly, for standalone servers.
type NoTransaction struct{}

func (NoTransaction) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
