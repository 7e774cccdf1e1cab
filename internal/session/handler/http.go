// Package handler exposes session listing and termination over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"maritime-onboarding/backend/internal/revocation"
	"maritime-onboarding/backend/internal/server/api"
	"maritime-onboarding/backend/internal/server/middleware"
	"maritime-onboarding/backend/internal/session/domain"
)

// Registry is the subset of the session registry the HTTP layer calls.
type Registry interface {
	ListActive(ctx context.Context, userID string) ([]*domain.Session, error)
	Validate(ctx context.Context, id string) (*domain.Session, error)
	Terminate(ctx context.Context, s *domain.Session, reason string) error
}

// Handler serves the /auth/sessions endpoints.
type Handler struct {
	registry Registry
}

// NewHandler returns a session HTTP handler.
func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

type sessionResponse struct {
	ID           string    `json:"id"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	Current      bool      `json:"current"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// List returns the caller's active sessions, most recently active first.
func (h *Handler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	sessions, err := h.registry.ListActive(c.Request.Context(), userID)
	if err != nil {
		api.Error(c, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}
	current := middleware.GetSessionID(c)
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:           s.ID,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			Current:      s.ID == current,
			LastActivity: s.LastActivity,
			CreatedAt:    s.CreatedAt,
			ExpiresAt:    s.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// Terminate revokes one of the caller's sessions by ID. Callers can only
// terminate their own sessions.
func (h *Handler) Terminate(c *gin.Context) {
	id := c.Param("id")
	sess, err := h.registry.Validate(c.Request.Context(), id)
	if err != nil {
		api.Error(c, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}
	if sess == nil || sess.UserID != middleware.GetUserID(c) {
		api.Error(c, http.StatusNotFound, api.CodeNotFound, "session not found")
		return
	}
	if err := h.registry.Terminate(c.Request.Context(), sess, revocation.ReasonTerminated); err != nil {
		api.Error(c, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}
