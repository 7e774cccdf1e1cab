// Package handler exposes magic link request and exchange over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	magiclinkdomain "maritime-onboarding/backend/internal/magiclink/domain"
	magiclinkservice "maritime-onboarding/backend/internal/magiclink/service"
	"maritime-onboarding/backend/internal/server/api"
	sessiondomain "maritime-onboarding/backend/internal/session/domain"
	sessionservice "maritime-onboarding/backend/internal/session/service"
)

// LinkService is the subset of the magic link service the HTTP layer calls.
type LinkService interface {
	Request(ctx context.Context, email, ip string) (*magiclinkdomain.MagicLink, error)
	Exchange(ctx context.Context, token, ip, userAgent string) (*sessiondomain.Session, *sessionservice.IssuedTokens, error)
}

// Handler serves the /auth/magic-link endpoints.
type Handler struct {
	svc LinkService
}

// NewHandler returns a magic link HTTP handler.
func NewHandler(svc LinkService) *Handler {
	return &Handler{svc: svc}
}

type requestLinkRequest struct {
	Email string `json:"email" binding:"required"`
}

// Request issues a single-use sign-in link to the given email. The response
// does not reveal whether the email exists: unknown, inactive, and ineligible
// accounts all get the same 202 as a successful request.
func (h *Handler) Request(c *gin.Context) {
	var req requestLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, api.CodeInvalidRequest, "email is required")
		return
	}
	_, err := h.svc.Request(c.Request.Context(), req.Email, c.ClientIP())
	switch {
	case err == nil,
		errors.Is(err, magiclinkservice.ErrUnknownUser),
		errors.Is(err, magiclinkservice.ErrUserInactive),
		errors.Is(err, magiclinkservice.ErrNotEligible):
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	default:
		api.MagicLinkError(c, err)
	}
}

type exchangeRequest struct {
	Token string `json:"token"`
}

type sessionTokens struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	SessionID    string    `json:"sessionId"`
}

// Exchange swaps a magic link token for a session. The token comes from the
// JSON body or, for emailed links opened directly, the query string.
func (h *Handler) Exchange(c *gin.Context) {
	var req exchangeRequest
	_ = c.ShouldBindJSON(&req)
	if req.Token == "" {
		req.Token = c.Query("token")
	}
	if req.Token == "" {
		api.Error(c, http.StatusBadRequest, api.CodeInvalidRequest, "token is required")
		return
	}

	sess, tokens, err := h.svc.Exchange(c.Request.Context(), req.Token, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		api.MagicLinkError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionTokens{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.AccessExpiresAt,
		UserID:       sess.UserID,
		SessionID:    sess.ID,
	})
}
