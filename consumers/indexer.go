// Package consumers holds the event handlers that keep the search index and
// the media store in step with post lifecycle events.
package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"socialhub/events"
	"socialhub/models"
)

type SearchIndex interface {
	UpsertSearchDocument(ctx context.Context, doc *models.SearchDocument) error
	DeleteSearchDocument(ctx context.Context, postID string) (bool, error)
}

// ResultCache is told whenever the index changes.
type ResultCache interface {
	Invalidate(ctx context.Context) error
}

// SearchIndexer projects posts into the search collection. Both handlers are
// idempotent: the projection is keyed by post id.
type SearchIndexer struct {
	index   SearchIndex
	results ResultCache
	logger  *slog.Logger
}

// NewSearchIndexer builds an indexer. results may be nil.
func NewSearchIndexer(index SearchIndex, results ResultCache, logger *slog.Logger) *SearchIndexer {
	return &SearchIndexer{index: index, results: results, logger: logger}
}

func (s *SearchIndexer) HandlePostCreated(ctx context.Context, body []byte) error {
	e, err := events.DecodePostCreated(body)
	if err != nil {
		return err
	}

	doc := &models.SearchDocument{
		PostID:    e.PostID,
		AuthorID:  e.AuthorID,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
	}
	if err := s.index.UpsertSearchDocument(ctx, doc); err != nil {
		return fmt.Errorf("index post %s: %w", e.PostID, err)
	}
	s.logger.Info("post indexed", "post_id", e.PostID)
	s.invalidate(ctx)
	return nil
}

func (s *SearchIndexer) HandlePostDeleted(ctx context.Context, body []byte) error {
	e, err := events.DecodePostDeleted(body)
	if err != nil {
		return err
	}

	removed, err := s.index.DeleteSearchDocument(ctx, e.PostID)
	if err != nil {
		return fmt.Errorf("unindex post %s: %w", e.PostID, err)
	}
	if !removed {
		s.logger.Debug("post was not indexed", "post_id", e.PostID)
		return nil
	}
	s.logger.Info("post removed from index", "post_id", e.PostID)
	s.invalidate(ctx)
	return nil
}

func (s *SearchIndexer) invalidate(ctx context.Context) {
	if s.results == nil {
		return
	}
	if err := s.results.Invalidate(ctx); err != nil {
		s.logger.Error("invalidate search results", "error", err)
	}
}
