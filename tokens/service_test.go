package tokens

import (
	"context"
	"testing"
	"time"

	"socialhub/clock"
	"socialhub/memstore"
	"socialhub/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testEnv struct {
	svc      *Service
	clock    *clock.Stub
	store    *memstore.RefreshTokens
	accounts *memstore.Accounts
	account  *models.Account
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	clk := clock.NewStub(time.Now())
	store := memstore.NewRefreshTokens()
	accounts := memstore.NewAccounts()

	account := &models.Account{Username: gofakeit.Username(), Email: gofakeit.Email()}
	require.NoError(t, accounts.InsertAccount(ctx, account))

	svc := NewService(store, accounts, Options{
		Secret:     testSecret,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Clock:      clk,
	})
	return &testEnv{svc: svc, clock: clk, store: store, accounts: accounts, account: account}
}

func TestIssueAndVerify(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.svc.Issue(context.Background(), env.account)
	require.NoError(t, err)
	assert.Len(t, pair.RefreshToken, refreshTokenBytes*2)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.Equal(t, 1, env.store.Len())

	claims, err := env.svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, env.account.ID.Hex(), claims.UserID)
	assert.Equal(t, env.account.Username, claims.Username)
}

func TestVerifyAccessFailures(t *testing.T) {
	env := newTestEnv(t)
	pair, err := env.svc.Issue(context.Background(), env.account)
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewVerifier(testSecret, clock.NewStub(env.clock.Now().Add(16*time.Minute)))
		_, err := later.VerifyAccess(pair.AccessToken)
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewVerifier("another-secret", env.clock)
		_, err := other.VerifyAccess(pair.AccessToken)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := env.svc.VerifyAccess("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			UserID: env.account.ID.Hex(),
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(env.clock.Now().Add(time.Hour)),
			},
		})
		s, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = env.svc.VerifyAccess(s)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})
}

func TestRedeemRefreshRotates(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.svc.Issue(ctx, env.account)
	require.NoError(t, err)

	second, err := env.svc.RedeemRefresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, env.store.Len())

	_, err = env.svc.RedeemRefresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.svc.RedeemRefresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRedeemRefreshExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pair, err := env.svc.Issue(ctx, env.account)
	require.NoError(t, err)

	env.clock.Advance(7*24*time.Hour + time.Second)
	_, err = env.svc.RedeemRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, 0, env.store.Len())
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pair, err := env.svc.Issue(ctx, env.account)
	require.NoError(t, err)

	require.NoError(t, env.svc.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, env.svc.Revoke(ctx, pair.RefreshToken))
	assert.ErrorIs(t, env.svc.Revoke(ctx, ""), ErrMissingToken)

	_, err = env.svc.RedeemRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMultipleDevices(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	phone, err := env.svc.Issue(ctx, env.account)
	require.NoError(t, err)
	laptop, err := env.svc.Issue(ctx, env.account)
	require.NoError(t, err)
	assert.Equal(t, 2, env.store.Len())

	require.NoError(t, env.svc.Revoke(ctx, phone.RefreshToken))
	_, err = env.svc.RedeemRefresh(ctx, laptop.RefreshToken)
	assert.NoError(t, err)
}
