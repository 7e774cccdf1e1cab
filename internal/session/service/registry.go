// Package service implements the session registry: creation with a bounded
// number of concurrent sessions per user, activity tracking, and termination
// that also revokes the session's outstanding token jtis.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"maritime-onboarding/backend/internal/revocation"
	"maritime-onboarding/backend/internal/security"
	"maritime-onboarding/backend/internal/session/domain"
	"maritime-onboarding/backend/internal/session/repository"
	userdomain "maritime-onboarding/backend/internal/user/domain"
)

// DefaultMaxSessions is the per-user concurrent session cap.
const DefaultMaxSessions = 3

// IssuedTokens carries the token pair minted for a new session.
type IssuedTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionLimiter resolves the per-user session cap at session creation.
// Satisfied by the policy engine; lets operator policy tighten or relax the
// configured default per principal.
type SessionLimiter interface {
	MaxSessions(ctx context.Context, u *userdomain.User) int
}

// Registry manages the session lifecycle. Terminating a session always
// revokes its current access and refresh jtis so the tokens die with it.
type Registry struct {
	sessions    repository.Repository
	revocations revocation.Store
	tokens      *security.TokenProvider
	maxSessions int
	limiter     SessionLimiter
	refreshTTL  time.Duration
	nowF        func() time.Time
}

func NewRegistry(sessions repository.Repository, revocations revocation.Store, tokens *security.TokenProvider, maxSessions int, refreshTTL time.Duration) *Registry {
	if maxSessions < 1 {
		maxSessions = DefaultMaxSessions
	}
	return &Registry{
		sessions:    sessions,
		revocations: revocations,
		tokens:      tokens,
		maxSessions: maxSessions,
		refreshTTL:  refreshTTL,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// SetSessionLimiter installs a per-user cap resolver. Without one the
// configured maxSessions applies to everyone.
func (r *Registry) SetSessionLimiter(l SessionLimiter) {
	r.limiter = l
}

// Create mints a token pair bound to the caller's device and registers the
// session. If the user is at the session cap the least recently active
// sessions are evicted first, and their tokens revoked.
func (r *Registry) Create(ctx context.Context, u *userdomain.User, ip, userAgent string) (*domain.Session, *IssuedTokens, error) {
	if err := r.evictOverCap(ctx, u); err != nil {
		return nil, nil, err
	}

	now := r.nowF()
	sessionID := uuid.NewString()
	binding := security.NewBinding(ip, userAgent)

	refreshToken, refreshJti, refreshExp, err := r.tokens.IssueRefresh(sessionID, u.ID, string(u.Role))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	accessToken, accessJti, accessExp, err := r.tokens.IssueAccess(sessionID, u.ID, string(u.Role), binding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	s := &domain.Session{
		ID:                sessionID,
		UserID:            u.ID,
		IPAddress:         ip,
		UserAgent:         userAgent,
		DeviceFingerprint: security.DeviceFingerprint(ip, userAgent),
		AccessJti:         accessJti,
		RefreshJti:        refreshJti,
		RefreshTokenHash:  security.HashToken(refreshToken),
		ExpiresAt:         now.Add(r.refreshTTL),
		LastActivity:      now,
		CreatedAt:         now,
	}
	if err := r.sessions.Create(ctx, s); err != nil {
		return nil, nil, err
	}

	return s, &IssuedTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// evictOverCap terminates least recently active sessions until one slot is
// free. ListActiveByUser orders most recent first, so eviction walks the tail.
func (r *Registry) evictOverCap(ctx context.Context, u *userdomain.User) error {
	max := r.maxSessions
	if r.limiter != nil {
		if n := r.limiter.MaxSessions(ctx, u); n > 0 {
			max = n
		}
	}

	active, err := r.sessions.ListActiveByUser(ctx, u.ID)
	if err != nil {
		return err
	}
	if len(active) < max {
		return nil
	}
	for i := len(active) - 1; i >= max-1; i-- {
		if err := r.Terminate(ctx, active[i], revocation.ReasonEvicted); err != nil {
			return err
		}
	}
	return nil
}

// Validate returns the session for id if it exists and is active.
// It returns (nil, nil) when the session is missing, revoked, or expired.
func (r *Registry) Validate(ctx context.Context, id string) (*domain.Session, error) {
	s, err := r.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil || !s.Active(r.nowF()) {
		return nil, nil
	}
	return s, nil
}

// Touch records activity on the session.
func (r *Registry) Touch(ctx context.Context, id string) error {
	return r.sessions.UpdateLastActivity(ctx, id, r.nowF())
}

// SuspiciousActivity reports whether a request's device differs from the one
// the session was created on. IP comparison is over the coarse network, so
// ordinary DHCP churn within a subnet does not trip it.
func (r *Registry) SuspiciousActivity(s *domain.Session, ip, userAgent string) bool {
	return s.DeviceFingerprint != security.DeviceFingerprint(ip, userAgent)
}

// Terminate revokes the session and both of its current token jtis.
// Revocation uses the session expiry as the token horizon so the entries
// outlive any token the session could have issued.
func (r *Registry) Terminate(ctx context.Context, s *domain.Session, reason string) error {
	if s.AccessJti != "" {
		if err := r.revocations.Revoke(ctx, s.AccessJti, reason, s.ExpiresAt); err != nil {
			return err
		}
	}
	if s.RefreshJti != "" {
		if err := r.revocations.Revoke(ctx, s.RefreshJti, reason, s.ExpiresAt); err != nil {
			return err
		}
	}
	return r.sessions.Revoke(ctx, s.ID)
}

// TerminateAll revokes every active session the user has. Used on refresh
// token reuse and on administrative lockdown.
func (r *Registry) TerminateAll(ctx context.Context, userID, reason string) error {
	active, err := r.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, s := range active {
		if err := r.Terminate(ctx, s, reason); err != nil {
			return err
		}
	}
	return r.sessions.RevokeAllByUser(ctx, userID)
}

// ListActive returns the user's live sessions, most recently active first.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	return r.sessions.ListActiveByUser(ctx, userID)
}
