package repository

import (
	"context"
	"sync"
	"time"

	"maritime-onboarding/backend/internal/magiclink/domain"
)

// MemoryRepository is an in-memory Repository for tests and local development.
type MemoryRepository struct {
	mu    sync.RWMutex
	links map[string]*domain.MagicLink // keyed by token hash
	nowF  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		links: make(map[string]*domain.MagicLink),
		nowF:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, l *domain.MagicLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *l
	r.links[l.TokenHash] = &cp
	return nil
}

func (r *MemoryRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.MagicLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *MemoryRepository) Consume(_ context.Context, tokenHash, usedIP string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.links[tokenHash]
	if !ok || !l.Usable(r.nowF()) {
		return false, nil
	}
	now := r.nowF()
	l.UsedAt = &now
	l.UsedIP = usedIP
	return true, nil
}

func (r *MemoryRepository) SupersedeOthers(_ context.Context, email, exceptID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.links {
		if l.Email == email && l.ID != exceptID && l.UsedAt == nil {
			l.Superseded = true
		}
	}
	return nil
}

func (r *MemoryRepository) CountRecentByEmail(_ context.Context, email string, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, l := range r.links {
		if l.Email == email && !l.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.nowF().Add(-olderThan)
	var removed int64
	for hash, l := range r.links {
		if l.ExpiresAt.Before(cutoff) {
			delete(r.links, hash)
			removed++
		}
	}
	return removed, nil
}
