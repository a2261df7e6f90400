// Package search answers full-text queries over the post projection kept by
// the search indexer.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"socialhub/apperr"
	"socialhub/cache"
	"socialhub/models"
)

const (
	ResultLimit = 10
	MaxQueryLen = 200

	resultTTL = 300 * time.Second
)

type Index interface {
	SearchPosts(ctx context.Context, query string, limit int64) ([]models.SearchDocument, error)
}

type Service struct {
	index  Index
	cache  cache.Cache
	logger *slog.Logger
}

func NewService(index Index, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{index: index, cache: c, logger: logger}
}

func resultKey(query string) string { return "search:" + query }

// Search returns the best matches for query, newest cached for a few
// minutes. Index changes drop the cached results.
func (s *Service) Search(ctx context.Context, query string) ([]models.SearchDocument, error) {
	query = strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if query == "" {
		return nil, apperr.Validation("Query parameter is required")
	}
	if len(query) > MaxQueryLen {
		return nil, apperr.Validation(fmt.Sprintf("query must be at most %d characters", MaxQueryLen))
	}

	key := resultKey(query)
	if b, err := s.cache.Get(ctx, key); err == nil {
		var docs []models.SearchDocument
		if json.Unmarshal(b, &docs) == nil {
			return docs, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}

	docs, err := s.index.SearchPosts(ctx, query, ResultLimit)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	if b, err := json.Marshal(docs); err == nil {
		if err := s.cache.Set(ctx, key, b, resultTTL); err != nil {
			s.logger.Warn("cache write failed", "key", key, "error", err)
		}
	}
	return docs, nil
}

// Invalidate drops every cached result set.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.DeletePattern(ctx, "search:*")
}
