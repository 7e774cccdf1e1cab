package middleware

import "github.com/gin-gonic/gin"

// Context keys set by the auth middleware.
const (
	ctxUserID     = "auth.userID"
	ctxRole       = "auth.role"
	ctxSessionID  = "auth.sessionID"
	ctxSuspicious = "auth.suspicious"
)

// SetIdentity stores the authenticated caller on the request context.
func SetIdentity(c *gin.Context, userID, role, sessionID string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
	c.Set(ctxSessionID, sessionID)
}

// GetUserID returns the authenticated user ID, or "" if unauthenticated.
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// GetRole returns the authenticated user's role, or "" if unauthenticated.
func GetRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// GetSessionID returns the session ID of the presented token, or "".
func GetSessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

// SetSuspicious records that the session's device fingerprint no longer
// matches the one it was created with.
func SetSuspicious(c *gin.Context, v bool) {
	c.Set(ctxSuspicious, v)
}

// IsSuspicious reports whether the current session was flagged during token
// verification.
func IsSuspicious(c *gin.Context) bool {
	return c.GetBool(ctxSuspicious)
}
