// Package service implements passwordless sign-in over single-use magic
// links. Issuance is restricted by policy to crew accounts; exchange is
// atomic, so a link grants exactly one session no matter how many callers
// race on it.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"maritime-onboarding/backend/internal/audit"
	"maritime-onboarding/backend/internal/magiclink/domain"
	"maritime-onboarding/backend/internal/magiclink/repository"
	"maritime-onboarding/backend/internal/security"
	sessiondomain "maritime-onboarding/backend/internal/session/domain"
	sessionservice "maritime-onboarding/backend/internal/session/service"
	userrepo "maritime-onboarding/backend/internal/user/repository"
)

var (
	ErrUnknownUser  = errors.New("no account for email")
	ErrUserInactive = errors.New("account is inactive")
	ErrNotEligible  = errors.New("role not eligible for passwordless sign-in")
	ErrRateLimited  = errors.New("too many link requests")
	ErrLinkNotFound = errors.New("magic link not found")
	ErrLinkExpired  = errors.New("magic link expired")
	ErrLinkUsed     = errors.New("magic link already used")
)

// Rate limit for link requests per email.
const (
	requestLimit  = 3
	requestWindow = 15 * time.Minute
)

// Policy decides whether a role may sign in without a password.
type Policy interface {
	PasswordlessAllowed(ctx context.Context, role string) (bool, error)
}

type Service struct {
	links    repository.Repository
	users    userrepo.Repository
	policy   Policy
	registry *sessionservice.Registry
	sender   Sender
	audit    audit.AuditLogger
	linkTTL  time.Duration
	baseURL  string
	nowF     func() time.Time
}

// Sender delivers the link. Satisfied by the mailer package.
type Sender interface {
	SendMagicLink(ctx context.Context, email, link string, expiresAt time.Time) error
}

func NewService(links repository.Repository, users userrepo.Repository, policy Policy, registry *sessionservice.Registry, sender Sender, auditLogger audit.AuditLogger, linkTTL time.Duration, baseURL string) *Service {
	return &Service{
		links:    links,
		users:    users,
		policy:   policy,
		registry: registry,
		sender:   sender,
		audit:    auditLogger,
		linkTTL:  linkTTL,
		baseURL:  baseURL,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Request issues a magic link for the email and hands it to the sender.
// Only the token hash is persisted.
func (s *Service) Request(ctx context.Context, email, ip string) (*domain.MagicLink, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}

	allowed, err := s.policy.PasswordlessAllowed(ctx, string(u.Role))
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.audit.LogEvent(ctx, u.ID, "magic_link_denied", "magic_link", fmt.Sprintf(`{"role":%q}`, u.Role))
		return nil, ErrNotEligible
	}

	recent, err := s.links.CountRecentByEmail(ctx, email, s.nowF().Add(-requestWindow))
	if err != nil {
		return nil, err
	}
	if recent >= requestLimit {
		return nil, ErrRateLimited
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.nowF()
	link := &domain.MagicLink{
		ID:        uuid.NewString(),
		Email:     email,
		TokenHash: security.HashToken(token),
		RequestIP: ip,
		ExpiresAt: now.Add(s.linkTTL),
		CreatedAt: now,
	}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, err
	}

	url := s.baseURL + "/auth/magic-link/verify?token=" + token
	if err := s.sender.SendMagicLink(ctx, email, url, link.ExpiresAt); err != nil {
		return nil, fmt.Errorf("failed to send magic link: %w", err)
	}
	s.audit.LogEvent(ctx, u.ID, "magic_link_requested", "magic_link", "")
	return link, nil
}

// Exchange consumes a magic link and mints a session for its owner. The
// conditional consume in the store guarantees at most one exchange succeeds
// per link; a successful exchange also retires the email's other outstanding
// links.
func (s *Service) Exchange(ctx context.Context, token, ip, userAgent string) (*sessiondomain.Session, *sessionservice.IssuedTokens, error) {
	hash := security.HashToken(token)
	link, err := s.links.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if link == nil {
		return nil, nil, ErrLinkNotFound
	}
	if link.UsedAt != nil || link.Superseded {
		return nil, nil, ErrLinkUsed
	}
	if !link.ExpiresAt.After(s.nowF()) {
		return nil, nil, ErrLinkExpired
	}

	won, err := s.links.Consume(ctx, hash, ip)
	if err != nil {
		return nil, nil, err
	}
	if !won {
		// Lost the race: reread to tell a concurrent use from a lapse.
		link, err = s.links.GetByTokenHash(ctx, hash)
		if err != nil {
			return nil, nil, err
		}
		if link != nil && link.UsedAt == nil && !link.Superseded {
			return nil, nil, ErrLinkExpired
		}
		return nil, nil, ErrLinkUsed
	}

	if err := s.links.SupersedeOthers(ctx, link.Email, link.ID); err != nil {
		return nil, nil, err
	}

	u, err := s.users.GetByEmail(ctx, link.Email)
	if err != nil {
		return nil, nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil, ErrUserInactive
	}

	sess, tokens, err := s.registry.Create(ctx, u, ip, userAgent)
	if err != nil {
		return nil, nil, err
	}
	s.audit.LogEvent(ctx, u.ID, "magic_link_login", "session", fmt.Sprintf(`{"session_id":%q}`, sess.ID))
	return sess, tokens, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
