// Package api defines the JSON error shape and the stable error codes the
// HTTP surface returns. Codes are contract: clients branch on them, so they
// never change even when messages do.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	identityservice "maritime-onboarding/backend/internal/identity/service"
	magiclinkservice "maritime-onboarding/backend/internal/magiclink/service"
	"maritime-onboarding/backend/internal/security"
)

// Stable error codes.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeAccountLocked        = "ACCOUNT_LOCKED"
	CodeWeakPassword         = "WEAK_PASSWORD"
	CodeEmailTaken           = "EMAIL_TAKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeTokenRevoked         = "TOKEN_REVOKED"
	CodeTokenInvalid         = "TOKEN_INVALID"
	CodeTokenBindingMismatch = "TOKEN_BINDING_MISMATCH"
	CodeReauthRequired       = "REAUTH_REQUIRED"
	CodeLinkNotFound         = "LINK_NOT_FOUND"
	CodeLinkExpired          = "LINK_EXPIRED"
	CodeLinkUsed             = "LINK_USED"
	CodeNotEligible          = "NOT_ELIGIBLE"
	CodeRateLimited          = "RATE_LIMITED"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeInternal             = "INTERNAL"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error writes the error envelope and aborts the request.
func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": ErrorBody{Code: code, Message: message}})
}

// AuthError maps auth service and token validation errors to HTTP status and
// stable code. Unrecognized errors become 500 INTERNAL without leaking detail.
func AuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identityservice.ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, CodeInvalidCredentials, "invalid email or password")
	case errors.Is(err, identityservice.ErrAccountLocked):
		Error(c, http.StatusLocked, CodeAccountLocked, "account temporarily locked; try again later")
	case errors.Is(err, identityservice.ErrWeakPassword):
		Error(c, http.StatusBadRequest, CodeWeakPassword, err.Error())
	case errors.Is(err, identityservice.ErrEmailAlreadyRegistered):
		Error(c, http.StatusConflict, CodeEmailTaken, "email already registered")
	case errors.Is(err, identityservice.ErrRefreshTokenReuse):
		Error(c, http.StatusUnauthorized, CodeTokenRevoked, "refresh token reuse detected; all sessions revoked")
	case errors.Is(err, identityservice.ErrInvalidRefreshToken):
		Error(c, http.StatusUnauthorized, CodeTokenInvalid, "invalid or expired refresh token")
	case errors.Is(err, identityservice.ErrTokenRevoked):
		Error(c, http.StatusUnauthorized, CodeTokenRevoked, "token has been revoked")
	case errors.Is(err, identityservice.ErrReauthRequired):
		Error(c, http.StatusUnauthorized, CodeReauthRequired, "re-authentication required")
	case errors.Is(err, identityservice.ErrStoreUnavailable):
		Error(c, http.StatusServiceUnavailable, CodeStoreUnavailable, "security store unavailable")
	case errors.Is(err, security.ErrTokenExpired):
		Error(c, http.StatusUnauthorized, CodeTokenExpired, "token has expired")
	case errors.Is(err, security.ErrTokenLifetime):
		Error(c, http.StatusUnauthorized, CodeTokenInvalid, "token lifetime exceeds policy")
	case errors.Is(err, security.ErrBindingMismatch):
		Error(c, http.StatusUnauthorized, CodeTokenBindingMismatch, "token was issued to a different device")
	case errors.Is(err, security.ErrInvalidToken):
		Error(c, http.StatusUnauthorized, CodeTokenInvalid, "invalid token")
	default:
		Error(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

// MagicLinkError maps magic link service errors to HTTP status and stable code.
func MagicLinkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, magiclinkservice.ErrLinkNotFound):
		Error(c, http.StatusNotFound, CodeLinkNotFound, "magic link not found")
	case errors.Is(err, magiclinkservice.ErrLinkExpired):
		Error(c, http.StatusGone, CodeLinkExpired, "magic link has expired")
	case errors.Is(err, magiclinkservice.ErrLinkUsed):
		Error(c, http.StatusConflict, CodeLinkUsed, "magic link already used")
	case errors.Is(err, magiclinkservice.ErrNotEligible):
		Error(c, http.StatusForbidden, CodeNotEligible, "passwordless sign-in is not available for this account")
	case errors.Is(err, magiclinkservice.ErrRateLimited):
		Error(c, http.StatusTooManyRequests, CodeRateLimited, "too many link requests; try again later")
	case errors.Is(err, magiclinkservice.ErrUnknownUser):
		Error(c, http.StatusNotFound, CodeNotFound, "no account for that email")
	case errors.Is(err, magiclinkservice.ErrUserInactive):
		Error(c, http.StatusForbidden, CodeForbidden, "account is inactive")
	default:
		Error(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
