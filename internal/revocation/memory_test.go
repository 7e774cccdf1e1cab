package revocation

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_RevokeAndLookup(t *testing.T) {
	store := NewMemoryStore(4 * time.Hour)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("unknown jti should not be revoked")
	}

	if err := store.Revoke(ctx, "jti-1", ReasonLogout, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	revoked, err = store.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Fatal("revoked jti should report revoked")
	}
}

func TestMemoryStore_RevokeIdempotent(t *testing.T) {
	store := NewMemoryStore(4 * time.Hour)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	if err := store.Revoke(ctx, "jti-1", ReasonLogout, exp); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := store.Revoke(ctx, "jti-1", ReasonRotated, exp); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	store.mu.RLock()
	rec := store.m["jti-1"]
	store.mu.RUnlock()
	if rec.Reason != ReasonLogout {
		t.Errorf("first revocation should win, reason = %q", rec.Reason)
	}
}

func TestMemoryStore_CleanupRespectsRetention(t *testing.T) {
	store := NewMemoryStore(4 * time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()
	store.nowF = func() time.Time { return now }

	// Token expired 5h ago: past the 4h retention window, eligible.
	_ = store.Revoke(ctx, "old", ReasonLogout, now.Add(-5*time.Hour))
	// Token expired 1h ago: still inside the retention window, kept.
	_ = store.Revoke(ctx, "recent", ReasonLogout, now.Add(-time.Hour))
	// Token still live: kept.
	_ = store.Revoke(ctx, "live", ReasonLogout, now.Add(time.Hour))

	removed, err := store.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	for _, jti := range []string{"recent", "live"} {
		if ok, _ := store.IsRevoked(ctx, jti); !ok {
			t.Errorf("%s should survive cleanup", jti)
		}
	}
	if ok, _ := store.IsRevoked(ctx, "old"); ok {
		t.Error("old entry should be cleaned up")
	}
}

func TestMemoryStore_CleanupIdempotent(t *testing.T) {
	store := NewMemoryStore(4 * time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()
	store.nowF = func() time.Time { return now }
	_ = store.Revoke(ctx, "old", ReasonLogout, now.Add(-5*time.Hour))

	if removed, _ := store.CleanupExpired(ctx); removed != 1 {
		t.Fatalf("first cleanup removed %d, want 1", removed)
	}
	if removed, _ := store.CleanupExpired(ctx); removed != 0 {
		t.Errorf("second cleanup removed %d, want 0", removed)
	}
}

func TestMemoryStore_RetentionFloor(t *testing.T) {
	// Retention shorter than the max token lifetime must be floored, otherwise
	// a live token's jti could be cleaned out of the blacklist.
	store := NewMemoryStore(time.Minute)
	if store.retention < 2*time.Hour {
		t.Errorf("retention = %v, want at least 2h", store.retention)
	}
}

func TestMemoryStore_DefaultClockAdvances(t *testing.T) {
	store := NewMemoryStore(4 * time.Hour)

	first := store.nowF()
	time.Sleep(15 * time.Millisecond)
	if second := store.nowF(); !second.After(first) {
		t.Errorf("store clock did not advance past %v", first)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(4 * time.Hour)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Revoke(ctx, "shared", ReasonLogout, exp)
			_, _ = store.IsRevoked(ctx, "shared")
			_, _ = store.CleanupExpired(ctx)
		}()
	}
	wg.Wait()

	if ok, _ := store.IsRevoked(ctx, "shared"); !ok {
		t.Error("jti should remain revoked after concurrent access")
	}
}
