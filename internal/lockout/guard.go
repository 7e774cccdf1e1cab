// Package lockout tracks failed authentication attempts per (identifier, ip)
// and applies progressive lockout. Keying is deliberately the composite only;
// an identifier-wide counter would let a third party lock out a legitimate
// user from anywhere.
package lockout

import (
	"context"
	"time"
)

// DefaultThreshold is the failed-attempt count that triggers a lockout.
const DefaultThreshold = 5

// escalation is the lockout duration for the k-th lockout of a key. Beyond the
// last entry the final duration applies.
var escalation = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	3600 * time.Second,
	24 * time.Hour,
}

// Record is the failure counter for one (identifier, ip) key. A record with a
// past LockedUntil is inert: it no longer blocks and the next failure cycle
// starts from its preserved LockoutCount.
type Record struct {
	Identifier   string
	IP           string
	AttemptCount int
	LockoutCount int
	LockedUntil  *time.Time
	UpdatedAt    time.Time
}

// Repository defines persistence for lockout records.
type Repository interface {
	Get(ctx context.Context, identifier, ip string) (*Record, error)
	// IncrementFailure atomically increments the attempt counter, creating the
	// record if absent, and returns the updated record.
	IncrementFailure(ctx context.Context, identifier, ip string) (*Record, error)
	// Lock sets locked_until, bumps the lockout counter, and resets the
	// attempt counter for the next cycle.
	Lock(ctx context.Context, identifier, ip string, until time.Time) error
	// Clear removes the record (successful authentication).
	Clear(ctx context.Context, identifier, ip string) error
	// DeleteInert removes records that have been inert longer than olderThan.
	DeleteInert(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Guard applies the threshold and escalation schedule over a Repository.
type Guard struct {
	repo      Repository
	threshold int
	nowF      func() time.Time
}

// NewGuard returns a Guard with the given repository and threshold.
// threshold < 1 falls back to DefaultThreshold.
func NewGuard(repo Repository, threshold int) *Guard {
	if threshold < 1 {
		threshold = DefaultThreshold
	}
	return &Guard{repo: repo, threshold: threshold, nowF: func() time.Time { return time.Now().UTC() }}
}

// RecordFailure counts one failed attempt for (identifier, ip). On reaching
// the threshold it sets an escalating locked_until and returns the lock
// expiry; otherwise returns nil. Store errors are returned so the caller can
// fail closed.
func (g *Guard) RecordFailure(ctx context.Context, identifier, ip string) (*time.Time, error) {
	rec, err := g.repo.IncrementFailure(ctx, identifier, ip)
	if err != nil {
		return nil, err
	}
	if rec.AttemptCount < g.threshold {
		return nil, nil
	}
	until := g.nowF().Add(Duration(rec.LockoutCount))
	if err := g.repo.Lock(ctx, identifier, ip, until); err != nil {
		return nil, err
	}
	return &until, nil
}

// IsLocked reports whether (identifier, ip) is currently locked out. A store
// error is returned unchanged; callers must deny on error.
func (g *Guard) IsLocked(ctx context.Context, identifier, ip string) (bool, error) {
	rec, err := g.repo.Get(ctx, identifier, ip)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.LockedUntil == nil {
		return false, nil
	}
	return rec.LockedUntil.After(g.nowF()), nil
}

// ClearOnSuccess resets the counter after a successful authentication.
func (g *Guard) ClearOnSuccess(ctx context.Context, identifier, ip string) error {
	return g.repo.Clear(ctx, identifier, ip)
}

// Duration returns the lockout duration for the k-th lockout (0-based).
func Duration(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	if k >= len(escalation) {
		k = len(escalation) - 1
	}
	return escalation[k]
}
