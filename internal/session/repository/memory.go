package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"maritime-onboarding/backend/internal/session/domain"
)

// MemoryRepository is an in-memory Repository for tests and local development.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	nowF     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*domain.Session),
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) ListActiveByUser(_ context.Context, userID string) ([]*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.nowF()
	var out []*domain.Session
	for _, s := range r.sessions {
		if s.UserID != userID || !s.Active(now) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	now := r.nowF()
	s.RevokedAt = &now
	return nil
}

func (r *MemoryRepository) RevokeAllByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowF()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			at := now
			s.RevokedAt = &at
		}
	}
	return nil
}

func (r *MemoryRepository) UpdateLastActivity(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.LastActivity = at
	}
	return nil
}

func (r *MemoryRepository) RotateRefreshToken(_ context.Context, sessionID, oldJti, newJti, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok || s.RevokedAt != nil || s.RefreshJti != oldJti {
		return false, nil
	}
	s.RefreshJti = newJti
	s.RefreshTokenHash = newHash
	return true, nil
}

func (r *MemoryRepository) UpdateAccessJti(_ context.Context, sessionID, jti string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[sessionID]; ok {
		s.AccessJti = jti
	}
	return nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.nowF().Add(-olderThan)
	var removed int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) || (s.RevokedAt != nil && s.RevokedAt.Before(cutoff)) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed, nil
}
