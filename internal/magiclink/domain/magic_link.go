package domain

import "time"

// MagicLink is a single-use passwordless login grant. Only the SHA-256 hash
// of the token is stored; the raw token exists only in the delivered link.
type MagicLink struct {
	ID         string
	Email      string
	TokenHash  string
	RequestIP  string
	ExpiresAt  time.Time
	UsedAt     *time.Time // set exactly once, by the consuming exchange
	UsedIP     string
	Superseded bool // a later successful exchange for the same email retired this link
	CreatedAt  time.Time
}

// Usable reports whether the link can still be exchanged at the given instant.
func (l *MagicLink) Usable(now time.Time) bool {
	return l.UsedAt == nil && !l.Superseded && l.ExpiresAt.After(now)
}
