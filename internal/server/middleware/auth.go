package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	identityservice "maritime-onboarding/backend/internal/identity/service"
	"maritime-onboarding/backend/internal/server/api"
)

// Verifier validates an access token against the presented request context.
type Verifier interface {
	Verify(ctx context.Context, accessToken, ip, userAgent string) (*identityservice.VerifyResult, error)
}

// Auth returns middleware that requires a valid bearer token. On success the
// caller's identity is placed on the request context.
func Auth(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c.GetHeader("Authorization"))
		if token == "" {
			api.Error(c, http.StatusUnauthorized, api.CodeTokenInvalid, "missing bearer token")
			return
		}
		res, err := verifier.Verify(c.Request.Context(), token, c.ClientIP(), c.Request.UserAgent())
		if err != nil {
			api.AuthError(c, err)
			return
		}
		SetIdentity(c, res.Claims.Subject, res.Claims.Role, res.Claims.SessionID)
		SetSuspicious(c, res.Suspicious)
		c.Next()
	}
}

// OptionalAuth verifies a bearer token when one is presented but lets the
// request through anonymously when the header is absent. A presented but
// invalid token is still rejected.
func OptionalAuth(verifier Verifier) gin.HandlerFunc {
	required := Auth(verifier)
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		required(c)
	}
}

// RequireRole returns middleware that rejects callers whose role is not in
// the allowed set. It must run after Auth.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[GetRole(c)]; !ok {
			api.Error(c, http.StatusForbidden, api.CodeForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// extractBearer pulls the token out of an Authorization header value. The
// scheme match is case-insensitive per RFC 7235.
func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
