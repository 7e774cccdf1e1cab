package domain

import "time"

// Session represents an active authentication for one user on one device.
type Session struct {
	ID                string
	UserID            string
	IPAddress         string
	UserAgent         string
	DeviceFingerprint string
	AccessJti         string // jti of the most recently issued access token
	RefreshJti        string // current refresh token jti for rotation
	RefreshTokenHash  string // SHA-256 hash of the current refresh token
	ExpiresAt         time.Time
	RevokedAt         *time.Time // nil when not revoked
	LastActivity      time.Time
	CreatedAt         time.Time
}

// Active reports whether the session is usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
