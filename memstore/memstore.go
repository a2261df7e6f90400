// Package memstore holds map-backed versions of the database stores. Tests
// across the services use them in place of MongoDB.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"socialhub/database"
	"socialhub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Accounts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Account
}

func NewAccounts() *Accounts {
	return &Accounts{byID: map[primitive.ObjectID]models.Account{}}
}

func (s *Accounts) InsertAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Username == account.Username || a.Email == account.Email {
			return fmt.Errorf("%w: account", database.ErrDuplicate)
		}
	}
	if account.ID.IsZero() {
		account.ID = primitive.NewObjectID()
	}
	s.byID[account.ID] = *account
	return nil
}

func (s *Accounts) FindAccountByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &a, nil
}

func (s *Accounts) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, database.ErrNotFound
}

func (s *Accounts) AccountExists(_ context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.Username == username || a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type RefreshTokens struct {
	mu     sync.Mutex
	byHash map[string]models.RefreshToken
}

func NewRefreshTokens() *RefreshTokens {
	return &RefreshTokens{byHash: map[string]models.RefreshToken{}}
}

func (s *RefreshTokens) SaveRefreshToken(_ context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[token.TokenHash]; ok {
		return fmt.Errorf("%w: refresh token", database.ErrDuplicate)
	}
	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	s.byHash[token.TokenHash] = *token
	return nil
}

func (s *RefreshTokens) ConsumeRefreshToken(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[tokenHash]
	if !ok {
		return nil, database.ErrNotFound
	}
	delete(s.byHash, tokenHash)
	return &t, nil
}

func (s *RefreshTokens) DeleteRefreshToken(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byHash[tokenHash]
	delete(s.byHash, tokenHash)
	return ok, nil
}

func (s *RefreshTokens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

type Posts struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Post
}

func NewPosts() *Posts {
	return &Posts{byID: map[primitive.ObjectID]models.Post{}}
}

func (s *Posts) InsertPost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	p := *post
	p.MediaIDs = slices.Clone(post.MediaIDs)
	s.byID[post.ID] = p
	return nil
}

func (s *Posts) FindPost(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (s *Posts) DeletePost(_ context.Context, id, authorID primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.AuthorID != authorID {
		return false, nil
	}
	delete(s.byID, id)
	return true, nil
}

func (s *Posts) ListPosts(_ context.Context, skip, limit int64) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]models.Post, 0, len(s.byID))
	for _, p := range s.byID {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.Hex() > all[j].ID.Hex()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if skip >= int64(len(all)) {
		return []models.Post{}, nil
	}
	end := min(skip+limit, int64(len(all)))
	return all[skip:end], nil
}

func (s *Posts) CountPosts(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byID)), nil
}

type Search struct {
	mu     sync.Mutex
	byPost map[string]models.SearchDocument
}

func NewSearch() *Search {
	return &Search{byPost: map[string]models.SearchDocument{}}
}

func (s *Search) UpsertSearchDocument(_ context.Context, doc *models.SearchDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byPost[doc.PostID]
	if ok {
		doc.ID = existing.ID
	} else if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	s.byPost[doc.PostID] = *doc
	return nil
}

func (s *Search) DeleteSearchDocument(_ context.Context, postID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byPost[postID]
	delete(s.byPost, postID)
	return ok, nil
}

// SearchPosts matches documents containing any query word, ranked by the
// number of matching words.
func (s *Search) SearchPosts(_ context.Context, query string, limit int64) ([]models.SearchDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	terms := strings.Fields(strings.ToLower(query))
	var out []models.SearchDocument
	for _, doc := range s.byPost {
		content := strings.ToLower(doc.Content)
		score := 0.0
		for _, term := range terms {
			if strings.Contains(content, term) {
				score++
			}
		}
		if score > 0 {
			doc.Score = score
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []models.SearchDocument{}
	}
	return out, nil
}

func (s *Search) Count(postID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPost[postID]; ok {
		return 1
	}
	return 0
}

func (s *Search) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPost)
}

type Media struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.MediaAsset
}

func NewMedia() *Media {
	return &Media{byID: map[primitive.ObjectID]models.MediaAsset{}}
}

func (s *Media) InsertMedia(_ context.Context, asset *models.MediaAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if asset.ID.IsZero() {
		asset.ID = primitive.NewObjectID()
	}
	s.byID[asset.ID] = *asset
	return nil
}

func (s *Media) FindMedia(_ context.Context, id primitive.ObjectID) (*models.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &a, nil
}

func (s *Media) DeleteMedia(_ context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	delete(s.byID, id)
	return ok, nil
}

func (s *Media) ListMediaByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.MediaAsset{}
	for _, a := range s.byID {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type Outbox struct {
	mu     sync.Mutex
	events []models.OutboxEvent
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (s *Outbox) EnqueueEvent(_ context.Context, event *models.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	s.events = append(s.events, *event)
	return nil
}

func (s *Outbox) PendingEvents(_ context.Context, limit int64) ([]models.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OutboxEvent
	for _, e := range s.events {
		if e.Status == models.OutboxPending {
			out = append(out, e)
			if int64(len(out)) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Outbox) MarkEventSent(_ context.Context, id primitive.ObjectID, at time.Time) error {
	return s.update(id, func(e *models.OutboxEvent) {
		e.Status = models.OutboxSent
		e.SentAt = &at
		e.Attempts++
	})
}

func (s *Outbox) MarkEventFailed(_ context.Context, id primitive.ObjectID, reason string) error {
	return s.update(id, func(e *models.OutboxEvent) {
		e.LastError = reason
		e.Attempts++
	})
}

func (s *Outbox) Events() []models.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

func (s *Outbox) update(id primitive.ObjectID, fn func(*models.OutboxEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			fn(&s.events[i])
			return nil
		}
	}
	return database.ErrNotFound
}
