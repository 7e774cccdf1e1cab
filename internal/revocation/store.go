// Package revocation provides the append-only token blacklist. A jti present
// here fails validation regardless of signature validity; callers must treat a
// store failure as fail-secure (deny), never as "not revoked".
package revocation

import (
	"context"
	"time"
)

// Reasons recorded on revocation entries.
const (
	ReasonLogout     = "logout"
	ReasonRotated    = "refresh_rotated"
	ReasonEvicted    = "session_evicted"
	ReasonTerminated = "session_terminated"
	ReasonReuse      = "refresh_reuse"
	ReasonSuspicious = "suspicious_activity"
)

// Record is one blacklist entry.
type Record struct {
	JTI            string
	RevokedAt      time.Time
	Reason         string
	TokenExpiresAt time.Time
}

// Store is the append-only blacklist keyed by jti with O(1) lookup.
type Store interface {
	// Revoke appends an entry for jti. Idempotent: revoking an already revoked
	// jti is not an error. tokenExpiresAt bounds the retention window.
	Revoke(ctx context.Context, jti, reason string, tokenExpiresAt time.Time) error
	// IsRevoked reports whether jti has been revoked. An error means the store
	// could not answer; callers fail closed.
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// CleanupExpired removes entries whose underlying token has been expired
	// for at least the retention window. Idempotent and safe to run
	// concurrently with live traffic. Returns the number of removed entries.
	CleanupExpired(ctx context.Context) (int64, error)
}
