package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"socialhub/apperr"
	"socialhub/clock"
	"socialhub/database"
	"socialhub/models"
	"socialhub/tokens"

	"github.com/go-playground/validator/v10"
)

type Store interface {
	InsertAccount(ctx context.Context, account *models.Account) error
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	AccountExists(ctx context.Context, username, email string) (bool, error)
}

type Issuer interface {
	Issue(ctx context.Context, account *models.Account) (*tokens.Pair, error)
}

type RegisterInput struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// validate checks the same binding tags gin applies to request bodies, for
// callers that build a RegisterInput themselves.
var validate = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	v.RegisterTagNameFunc(apperr.JSONFieldName)
	return v
}()

type Service struct {
	store  Store
	tokens Issuer
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(store Store, issuer Issuer, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Service{store: store, tokens: issuer, clock: clk, logger: logger}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Account, *tokens.Pair, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateRegistration(in); err != nil {
		return nil, nil, err
	}

	exists, err := s.store.AccountExists(ctx, in.Username, in.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("check account: %w", err)
	}
	if exists {
		s.logger.Warn("registration for existing account", "username", in.Username)
		return nil, nil, apperr.Validation("User already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	account := &models.Account{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.InsertAccount(ctx, account); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, nil, apperr.Validation("User already exists")
		}
		return nil, nil, fmt.Errorf("insert account: %w", err)
	}
	s.logger.Info("account registered", "account_id", account.ID.Hex())

	pair, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return account, pair, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*models.Account, *tokens.Pair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, apperr.Validation("email and password are required")
	}

	account, err := s.store.FindAccountByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil, apperr.Validation("Invalid credentials")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find account: %w", err)
	}

	ok, err := VerifyPassword(account.PasswordHash, password)
	if err != nil {
		return nil, nil, fmt.Errorf("verify password for %s: %w", account.ID.Hex(), err)
	}
	if !ok {
		s.logger.Warn("invalid password", "account_id", account.ID.Hex())
		return nil, nil, apperr.Validation("Invalid credentials")
	}

	pair, err := s.tokens.Issue(ctx, account)
	if err != nil {
		return nil, nil, err
	}
	return account, pair, nil
}

func validateRegistration(in RegisterInput) error {
	if err := validate.Struct(in); err != nil {
		return apperr.Invalid(err)
	}
	return nil
}
