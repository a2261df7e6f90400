// Package posts owns post writes and reads. Writes emit lifecycle events and
// invalidate the read cache; reads go through the cache.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"socialhub/apperr"
	"socialhub/cache"
	"socialhub/clock"
	"socialhub/database"
	"socialhub/events"
	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MinContentLength = 3
	MaxContentLength = 5000
	MaxMediaPerPost  = 10

	listTTL = 300 * time.Second
	postTTL = 3600 * time.Second

	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	ErrNotFound  = apperr.NotFound("Post not found")
	ErrForbidden = apperr.Forbidden("Not the owner of this post")
)

type Store interface {
	InsertPost(ctx context.Context, post *models.Post) error
	FindPost(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	DeletePost(ctx context.Context, id, authorID primitive.ObjectID) (bool, error)
	ListPosts(ctx context.Context, skip, limit int64) ([]models.Post, error)
	CountPosts(ctx context.Context) (int64, error)
}

type Service struct {
	store   Store
	cache   cache.Cache
	emitter events.Emitter
	tx      database.Transactor
	clock   clock.Clock
	logger  *slog.Logger
}

func NewService(store Store, c cache.Cache, emitter events.Emitter, tx database.Transactor, clk clock.Clock, logger *slog.Logger) *Service {
	if tx == nil {
		tx = database.NoTransaction{}
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Service{store: store, cache: c, emitter: emitter, tx: tx, clock: clk, logger: logger}
}

func postKey(id string) string       { return "post:" + id }
func listKey(page, limit int) string { return fmt.Sprintf("posts:%d:%d", page, limit) }

func (s *Service) CreatePost(ctx context.Context, authorID, content string, mediaIDs []string) (*models.Post, error) {
	author, err := primitive.ObjectIDFromHex(authorID)
	if err != nil {
		return nil, apperr.Auth("Invalid user id")
	}
	content = strings.TrimSpace(content)
	if err := validatePost(content, mediaIDs); err != nil {
		return nil, err
	}
	if mediaIDs == nil {
		mediaIDs = []string{}
	}

	post := &models.Post{
		ID:        primitive.NewObjectID(),
		AuthorID:  author,
		Content:   content,
		MediaIDs:  mediaIDs,
		CreatedAt: s.clock.Now().Truncate(time.Millisecond),
	}

	var written bool
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.InsertPost(ctx, post); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}
		written = true
		return s.emitter.Emit(ctx, events.PostCreated{
			PostID:    post.ID.Hex(),
			AuthorID:  authorID,
			Content:   post.Content,
			MediaIDs:  post.MediaIDs,
			CreatedAt: post.CreatedAt,
		})
	})
	if written {
		s.invalidate(ctx, post.ID.Hex())
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("post created", "post_id", post.ID.Hex(), "author_id", authorID)
	return post, nil
}

// DeletePost removes a post owned by requesterID. Callers that must not
// reveal whether someone else's post exists should treat ErrForbidden as
// not found.
func (s *Service) DeletePost(ctx context.Context, postID, requesterID string) error {
	id, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return ErrNotFound
	}
	requester, err := primitive.ObjectIDFromHex(requesterID)
	if err != nil {
		return apperr.Auth("Invalid user id")
	}

	post, err := s.store.FindPost(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find post: %w", err)
	}
	if post.AuthorID != requester {
		s.logger.Warn("delete by non-owner", "post_id", postID, "requester_id", requesterID)
		return ErrForbidden
	}

	var written bool
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		deleted, err := s.store.DeletePost(ctx, id, requester)
		if err != nil {
			return fmt.Errorf("delete post: %w", err)
		}
		if !deleted {
			return ErrNotFound
		}
		written = true
		return s.emitter.Emit(ctx, events.PostDeleted{
			PostID:   postID,
			AuthorID: requesterID,
			MediaIDs: post.MediaIDs,
		})
	})
	if written {
		s.invalidate(ctx, postID)
	}
	if err != nil {
		return err
	}
	s.logger.Info("post deleted", "post_id", postID)
	return nil
}

func (s *Service) ListPosts(ctx context.Context, page, limit int) (*models.PostPage, error) {
	key := listKey(page, limit)
	var result models.PostPage
	if s.readCache(ctx, key, &result) {
		return &result, nil
	}

	posts, err := s.store.ListPosts(ctx, int64((page-1)*limit), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	total, err := s.store.CountPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}

	result = models.PostPage{
		Posts:       posts,
		CurrentPage: page,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
		TotalPosts:  total,
	}
	s.writeCache(ctx, key, result, listTTL)
	return &result, nil
}

func (s *Service) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	id, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return nil, ErrNotFound
	}

	key := postKey(postID)
	var post models.Post
	if s.readCache(ctx, key, &post) {
		return &post, nil
	}

	found, err := s.store.FindPost(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	s.writeCache(ctx, key, found, postTTL)
	return found, nil
}

// invalidate drops the single-post key and every cached page: one write can
// shift the contents and the totals of all pages. It runs whenever the store
// write went through, even if the emit after it failed. A failure here is
// logged, not returned; the TTLs bound how long a stale page can live.
func (s *Service) invalidate(ctx context.Context, postID string) {
	if err := s.cache.Delete(ctx, postKey(postID)); err != nil {
		s.logger.Error("invalidate post cache", "post_id", postID, "error", err)
	}
	if err := s.cache.DeletePattern(ctx, "posts:*"); err != nil {
		s.logger.Error("invalidate post list cache", "error", err)
	}
}

func (s *Service) readCache(ctx context.Context, key string, v any) bool {
	b, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(b, v); err != nil {
		s.logger.Warn("cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, b, ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// NormalizePage applies the listing defaults and bounds.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, min(limit, MaxPageSize)
}

func validatePost(content string, mediaIDs []string) error {
	n := utf8.RuneCountInString(content)
	if n < MinContentLength || n > MaxContentLength {
		return apperr.Validation(fmt.Sprintf("content must be between %d and %d characters", MinContentLength, MaxContentLength))
	}
	if len(mediaIDs) > MaxMediaPerPost {
		return apperr.Validation(fmt.Sprintf("a post can reference at most %d media items", MaxMediaPerPost))
	}
	for _, id := range mediaIDs {
		if _, err := primitive.ObjectIDFromHex(id); err != nil {
			return apperr.Validation("mediaIds must be valid media ids")
		}
	}
	return nil
}
