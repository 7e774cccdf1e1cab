package lockout

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests and local development.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
	nowF    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*Record),
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

func key(identifier, ip string) string {
	return identifier + "|" + ip
}

func (r *MemoryRepository) Get(_ context.Context, identifier, ip string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key(identifier, ip)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) IncrementFailure(_ context.Context, identifier, ip string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(identifier, ip)
	rec, ok := r.records[k]
	if !ok {
		rec = &Record{Identifier: identifier, IP: ip}
		r.records[k] = rec
	}
	rec.AttemptCount++
	rec.UpdatedAt = r.nowF()
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) Lock(_ context.Context, identifier, ip string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key(identifier, ip)]
	if !ok {
		return nil
	}
	rec.LockedUntil = &until
	rec.LockoutCount++
	rec.AttemptCount = 0
	rec.UpdatedAt = r.nowF()
	return nil
}

func (r *MemoryRepository) Clear(_ context.Context, identifier, ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, key(identifier, ip))
	return nil
}

func (r *MemoryRepository) DeleteInert(_ context.Context, olderThan time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowF()
	cutoff := now.Add(-olderThan)
	var removed int64
	for k, rec := range r.records {
		if rec.UpdatedAt.After(cutoff) {
			continue
		}
		if rec.LockedUntil != nil && rec.LockedUntil.After(now) {
			continue
		}
		delete(r.records, k)
		removed++
	}
	return removed, nil
}
