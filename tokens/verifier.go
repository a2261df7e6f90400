// Package tokens issues and validates credentials: stateless signed access
// tokens and stored, single-use refresh tokens.
package tokens

import (
	"errors"
	"fmt"

	"socialhub/clock"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrNotFound         = errors.New("refresh token not found")
	ErrMissingToken     = errors.New("refresh token is required")
)

type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Verifier checks access tokens. It needs only the signing secret, so the
// gateway can verify without touching the identity store.
type Verifier struct {
	secret []byte
	clock  clock.Clock
}

func NewVerifier(secret string, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Verifier{secret: []byte(secret), clock: clk}
}

func (v *Verifier) VerifyAccess(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case !token.Valid || claims.UserID == "":
		return nil, ErrInvalidSignature
	}
	return claims, nil
}

func (v *Verifier) sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
