package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"socialhub/clock"
	"socialhub/database"
	"socialhub/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const refreshTokenBytes = 40

type RefreshStore interface {
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) (bool, error)
}

type AccountFinder interface {
	FindAccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
}

type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type Service struct {
	*Verifier
	store      RefreshStore
	accounts   AccountFinder
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      clock.Clock
}

func NewService(store RefreshStore, accounts AccountFinder, opts Options) *Service {
	if opts.AccessTTL == 0 {
		opts.AccessTTL = 60 * time.Minute
	}
	if opts.RefreshTTL == 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	return &Service{
		Verifier:   NewVerifier(opts.Secret, opts.Clock),
		store:      store,
		accounts:   accounts,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
	}
}

// Issue mints an access token and persists a fresh refresh token.
func (s *Service) Issue(ctx context.Context, account *models.Account) (*Pair, error) {
	now := s.clock.Now()

	access, err := s.sign(&Claims{
		UserID:   account.ID.Hex(),
		Username: account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.Hex(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := hex.EncodeToString(raw)

	err = s.store.SaveRefreshToken(ctx, &models.RefreshToken{
		TokenHash: hashToken(refresh),
		AccountID: account.ID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &Pair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.accessTTL.Seconds())}, nil
}

// RedeemRefresh consumes a refresh token and issues a new pair. The stored
// row is deleted before anything else, so a replayed token finds nothing.
func (s *Service) RedeemRefresh(ctx context.Context, token string) (*Pair, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	stored, err := s.store.ConsumeRefreshToken(ctx, hashToken(token))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	if !s.clock.Now().Before(stored.ExpiresAt) {
		return nil, ErrExpired
	}

	account, err := s.accounts.FindAccountByID(ctx, stored.AccountID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return s.Issue(ctx, account)
}

// Revoke deletes a refresh token. Revoking an unknown token is not an error.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if _, err := s.store.DeleteRefreshToken(ctx, hashToken(token)); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
