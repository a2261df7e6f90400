package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"socialhub/accounts"
	"socialhub/apperr"
	"socialhub/tokens"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	accounts *accounts.Service
	tokens   *tokens.Service
	logger   *slog.Logger
}

func NewAuthHandler(acc *accounts.Service, tok *tokens.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: acc, tokens: tok, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req accounts.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Invalid(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	account, pair, err := h.accounts.Register(ctx, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully!", tokenFields(account.ID.Hex(), pair))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, apperr.Invalid(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	account, pair, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Login successful", tokenFields(account.ID.Hex(), pair))
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	pair, err := h.tokens.RedeemRefresh(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, tokens.ErrMissingToken):
		badRequest(c, "Refresh token missing")
		return
	case errors.Is(err, tokens.ErrNotFound), errors.Is(err, tokens.ErrExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired refresh token"})
		return
	case err != nil:
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Token refreshed", gin.H{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	err := h.tokens.Revoke(ctx, req.RefreshToken)
	if errors.Is(err, tokens.ErrMissingToken) {
		badRequest(c, "Refresh token missing")
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, "Logged out successfully!", nil)
}

func tokenFields(userID string, pair *tokens.Pair) gin.H {
	return gin.H{
		"userId":       userID,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	}
}
