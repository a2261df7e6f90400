// Package events carries post lifecycle events between services over a
// RabbitMQ topic exchange.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	RoutePostCreated = "post.created"
	RoutePostDeleted = "post.deleted"
)

// ErrMalformed marks a payload that can never be processed. Subscribers drop
// such messages instead of requeueing them.
var ErrMalformed = errors.New("malformed event")

type Event interface {
	RoutingKey() string
	Validate() error
}

// PostCreated carries everything consumers need so they never call back into
// the post service.
type PostCreated struct {
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"mediaIds"`
	CreatedAt time.Time `json:"createdAt"`
}

func (PostCreated) RoutingKey() string { return RoutePostCreated }

func (e PostCreated) Validate() error {
	switch {
	case e.PostID == "":
		return fmt.Errorf("%w: %s: postId is required", ErrMalformed, RoutePostCreated)
	case e.AuthorID == "":
		return fmt.Errorf("%w: %s: authorId is required", ErrMalformed, RoutePostCreated)
	case e.CreatedAt.IsZero():
		return fmt.Errorf("%w: %s: createdAt is required", ErrMalformed, RoutePostCreated)
	}
	return nil
}

type PostDeleted struct {
	PostID   string   `json:"postId"`
	AuthorID string   `json:"authorId"`
	MediaIDs []string `json:"mediaIds"`
}

func (PostDeleted) RoutingKey() string { return RoutePostDeleted }

func (e PostDeleted) Validate() error {
	switch {
	case e.PostID == "":
		return fmt.Errorf("%w: %s: postId is required", ErrMalformed, RoutePostDeleted)
	case e.AuthorID == "":
		return fmt.Errorf("%w: %s: authorId is required", ErrMalformed, RoutePostDeleted)
	}
	return nil
}

func DecodePostCreated(body []byte) (PostCreated, error) {
	var e PostCreated
	if err := decode(body, &e); err != nil {
		return e, err
	}
	return e, e.Validate()
}

func DecodePostDeleted(body []byte) (PostDeleted, error) {
	var e PostDeleted
	if err := decode(body, &e); err != nil {
		return e, err
	}
	return e, e.Validate()
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Encode validates and serialises an event for the wire.
func Encode(e Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}
