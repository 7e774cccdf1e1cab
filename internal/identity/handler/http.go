// Package handler exposes the auth service over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	identityservice "maritime-onboarding/backend/internal/identity/service"
	"maritime-onboarding/backend/internal/server/api"
	"maritime-onboarding/backend/internal/server/middleware"
	userdomain "maritime-onboarding/backend/internal/user/domain"
)

// AuthService is the subset of the auth service the HTTP layer calls.
type AuthService interface {
	Register(ctx context.Context, email, password, name string, role userdomain.Role) (*userdomain.User, error)
	Login(ctx context.Context, email, password, ip, userAgent string) (*identityservice.AuthResult, error)
	Refresh(ctx context.Context, refreshToken, ip string) (*identityservice.AuthResult, error)
	Logout(ctx context.Context, refreshToken, sessionID string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, keepSessionID string) error
}

// Handler serves the /auth endpoints backed by the auth service.
type Handler struct {
	svc AuthService
}

// NewHandler returns an auth HTTP handler.
func NewHandler(svc AuthService) *Handler {
	return &Handler{svc: svc}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	Role     string `json:"role" binding:"required"`
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	IsActive bool   `json:"isActive"`
}

// Register creates a user account. Admin only; the router enforces the role.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, api.CodeInvalidRequest, "email, password and role are required")
		return
	}
	role := userdomain.Role(req.Role)
	if !role.Valid() {
		api.Error(c, http.StatusBadRequest, api.CodeInvalidRequest, "role must be admin, manager, or crew")
		return
	}
	u, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Name, role)
	if err != nil {
		api.AuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     string(u.Role),
		IsActive: u.IsActive,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	UserID       string    `json:"userId"`
	Role         string    `json:"role"`
	SessionID    string    `json:"sessionId"`
}

// Login authenticates with email and password and starts a session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, api.CodeInvalidRequest, "email and password are required")
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		api.AuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		UserID:       res.UserID,
		Role:         res.Role,
		SessionID:    res.SessionID,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh rotates a refresh token and mints a new access token.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, api.CodeInvalidRequest, "refreshToken is required")
		return
	}
	res, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP())
	if err != nil {
		api.AuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.ExpiresAt,
		UserID:       res.UserID,
		Role:         res.Role,
		SessionID:    res.SessionID,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout ends the caller's session. Accepts a refresh token in the body;
// otherwise falls back to the session of the presented access token.
// Idempotent: an already-dead session still returns 204.
func (h *Handler) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	sessionID := ""
	if req.RefreshToken == "" {
		sessionID = middleware.GetSessionID(c)
	}
	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken, sessionID); err != nil {
		api.AuthError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// ChangePassword updates the caller's password and revokes their other
// sessions. The session behind the presented token stays alive.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.Error(c, http.StatusBadRequest, api.CodeInvalidRequest, "currentPassword and newPassword are required")
		return
	}
	userID := middleware.GetUserID(c)
	err := h.svc.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword, middleware.GetSessionID(c))
	if err != nil {
		api.AuthError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Verify reports the identity behind the presented access token. The auth
// middleware has already validated it; this just echoes the context.
func (h *Handler) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"suspicious": middleware.IsSuspicious(c),
		"principal": gin.H{
			"userId":    middleware.GetUserID(c),
			"role":      middleware.GetRole(c),
			"sessionId": middleware.GetSessionID(c),
		},
	})
}
