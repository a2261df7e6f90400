package middleware

import (
	"errors"
	"net/http"
	"strings"

	"socialhub/tokens"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the verified caller from the gateway to the backends.
const UserIDHeader = "x-user-id"

// AccessVerifier is satisfied by *tokens.Verifier.
type AccessVerifier interface {
	VerifyAccess(token string) (*tokens.Claims, error)
}

// Authenticate verifies the bearer token and stores the caller under
// "userId".
func Authenticate(verifier AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight carries no credentials
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if Identify(c, verifier) {
			c.Next()
		}
	}
}

// Identify resolves the caller from the Authorization header, or aborts with
// 401 and returns false. Browsers cannot set headers on websocket
// handshakes, so upgrade requests may pass the token as ?token= instead.
func Identify(c *gin.Context, verifier AccessVerifier) bool {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" && isWebsocketUpgrade(c.Request) {
		if token := c.Query("token"); token != "" {
			authHeader = "Bearer " + token
		}
	}
	if authHeader == "" {
		abort(c, http.StatusUnauthorized, "Authentication required")
		return false
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		abort(c, http.StatusUnauthorized, "Invalid authorization header")
		return false
	}

	claims, err := verifier.VerifyAccess(parts[1])
	if errors.Is(err, tokens.ErrExpired) {
		abort(c, http.StatusUnauthorized, "Token expired")
		return false
	}
	if err != nil {
		abort(c, http.StatusUnauthorized, "Invalid token")
		return false
	}

	c.Set("userId", claims.UserID)
	return true
}

// RequireUser trusts the x-user-id header set by the gateway. Backends are
// only reachable through the gateway, which strips any client-sent value.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserIDHeader)
		if userID == "" {
			abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		c.Set("userId", userID)
		c.Next()
	}
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
