package revocation

import (
	"context"
	"sync"
	"time"

	"maritime-onboarding/backend/internal/config"
)

// MemoryStore is an in-memory Store implementation for unit tests and
// single-process development. Production uses PostgresStore.
type MemoryStore struct {
	mu        sync.RWMutex
	m         map[string]Record
	retention time.Duration
	nowF      func() time.Time
}

// NewMemoryStore returns a new in-memory blacklist with the given retention,
// floored at the maximum token lifetime.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention < config.MaxAccessTTL {
		retention = config.MaxAccessTTL
	}
	return &MemoryStore{
		m:         make(map[string]Record),
		retention: retention,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Revoke appends an entry for jti. Idempotent: the first revocation wins.
func (s *MemoryStore) Revoke(ctx context.Context, jti, reason string, tokenExpiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[jti]; ok {
		return nil
	}
	s.m[jti] = Record{JTI: jti, RevokedAt: s.nowF(), Reason: reason, TokenExpiresAt: tokenExpiresAt.UTC()}
	return nil
}

// IsRevoked reports whether jti is blacklisted.
func (s *MemoryStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[jti]
	return ok, nil
}

// CleanupExpired removes entries whose token has been expired for at least the
// retention window.
func (s *MemoryStore) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := s.nowF().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for jti, rec := range s.m {
		if rec.TokenExpiresAt.Before(cutoff) {
			delete(s.m, jti)
			removed++
		}
	}
	return removed, nil
}
