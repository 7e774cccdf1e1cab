package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"maritime-onboarding/backend/internal/audit"
)

// auditSkip lists route templates never audited.
var auditSkip = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
}

// Audit returns middleware that records an audit entry after each handled
// request from an authenticated caller. Recording is best-effort and never
// affects the response.
func Audit(logger audit.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if logger == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			return
		}
		if _, ok := auditSkip[route]; ok {
			return
		}
		userID := GetUserID(c)
		if userID == "" {
			return
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			return
		}

		ar := audit.ParseRoute(c.Request.Method, route)
		metadata := fmt.Sprintf(`{"status":%d,"path":%q}`, c.Writer.Status(), c.Request.URL.Path)
		logger.LogEvent(c.Request.Context(), userID, ar.Action, ar.Resource, metadata)
	}
}

type clientIPKey struct{}

// ClientIP returns middleware that stores the resolved client IP on the
// request context so code below the HTTP layer can read it.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), clientIPKey{}, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ClientIPFromContext returns the client IP stored by ClientIP, or "unknown".
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}
