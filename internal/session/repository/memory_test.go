package repository

import (
	"context"
	"testing"
	"time"

	"maritime-onboarding/backend/internal/session/domain"
)

func TestMemoryListActiveExcludesExpired(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	now := time.Now().UTC()

	live := &domain.Session{ID: "s-live", UserID: "u-1", ExpiresAt: now.Add(time.Hour), LastActivity: now}
	dead := &domain.Session{ID: "s-dead", UserID: "u-1", ExpiresAt: now.Add(-time.Minute), LastActivity: now}
	for _, s := range []*domain.Session{live, dead} {
		if err := r.Create(ctx, s); err != nil {
			t.Fatalf("Create(%s) error = %v", s.ID, err)
		}
	}

	active, err := r.ListActiveByUser(ctx, "u-1")
	if err != nil {
		t.Fatalf("ListActiveByUser() error = %v", err)
	}
	if len(active) != 1 || active[0].ID != "s-live" {
		t.Errorf("ListActiveByUser() = %+v, want only s-live", active)
	}
}

func TestMemoryDefaultClockAdvances(t *testing.T) {
	r := NewMemoryRepository()

	first := r.nowF()
	time.Sleep(15 * time.Millisecond)
	if second := r.nowF(); !second.After(first) {
		t.Errorf("repository clock did not advance past %v", first)
	}
}
