package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"maritime-onboarding/backend/internal/audit"
	"maritime-onboarding/backend/internal/credential"
	identitydomain "maritime-onboarding/backend/internal/identity/domain"
	"maritime-onboarding/backend/internal/lockout"
	policyengine "maritime-onboarding/backend/internal/policy/engine"
	"maritime-onboarding/backend/internal/revocation"
	"maritime-onboarding/backend/internal/security"
	sessiondomain "maritime-onboarding/backend/internal/session/domain"
	sessionservice "maritime-onboarding/backend/internal/session/service"
	"maritime-onboarding/backend/internal/telemetry"
	telemetrydomain "maritime-onboarding/backend/internal/telemetry/domain"
	userdomain "maritime-onboarding/backend/internal/user/domain"
)

// Sentinel errors for auth service; the handler maps them to HTTP status and
// stable error codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountLocked          = errors.New("account temporarily locked")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
	ErrTokenRevoked           = errors.New("token has been revoked")
	ErrReauthRequired         = errors.New("re-authentication required")
	ErrStoreUnavailable       = errors.New("security store unavailable")
	ErrWeakPassword           = errors.New("password does not meet requirements")
)

// AuthResult holds the outcome of Login, Exchange, or Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Role         string
	SessionID    string
}

// VerifyResult is the outcome of validating an access token against the
// revocation store and session registry.
type VerifyResult struct {
	Claims     *security.AccessClaims
	Session    *sessiondomain.Session
	Suspicious bool
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
	UpdatePasswordHash(ctx context.Context, identityID, newHash string) error
	RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error)
}

// SessionRepo is the session persistence the auth service touches directly;
// lifecycle operations go through the registry.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, oldJti, newJti, newHash string) (bool, error)
	UpdateAccessJti(ctx context.Context, sessionID, jti string) error
	UpdateLastActivity(ctx context.Context, id string, at time.Time) error
}

// AuthService implements password login with lockout, token refresh with
// rotation, logout, and access token verification.
type AuthService struct {
	userRepo     UserRepo
	identityRepo IdentityRepo
	sessionRepo  SessionRepo
	registry     *sessionservice.Registry
	guard        *lockout.Guard
	revocations  revocation.Store
	hasher       *security.Hasher
	tokens       *security.TokenProvider
	policy       policyengine.Evaluator
	audit        audit.AuditLogger
	emitter      telemetry.EventEmitter
}

// NewAuthService returns an AuthService with the given dependencies.
// policy, auditLogger, and emitter may be nil; without a policy engine
// suspicious sessions are flagged but never force re-authentication.
func NewAuthService(
	userRepo UserRepo,
	identityRepo IdentityRepo,
	sessionRepo SessionRepo,
	registry *sessionservice.Registry,
	guard *lockout.Guard,
	revocations revocation.Store,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	policy policyengine.Evaluator,
	auditLogger audit.AuditLogger,
	emitter telemetry.EventEmitter,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		identityRepo: identityRepo,
		sessionRepo:  sessionRepo,
		registry:     registry,
		guard:        guard,
		revocations:  revocations,
		hasher:       hasher,
		tokens:       tokens,
		policy:       policy,
		audit:        auditLogger,
		emitter:      emitter,
	}
}

// Register creates a user and local identity with the given email, password,
// and role. The password must pass full credential validation.
func (s *AuthService) Register(ctx context.Context, email, password, name string, role userdomain.Role) (*userdomain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	result := credential.Validate(password, credential.Context{Email: email})
	if !result.Valid {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(result.Errors, "; "))
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	identity := &identitydomain.Identity{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.identityRepo.Create(ctx, identity); err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, "user_registered", "user", "")
	return user, nil
}

// Login authenticates with email/password, creates a session, and returns
// tokens. Failed attempts feed the lockout guard; a guard store failure
// denies the login rather than skipping the check.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	locked, err := s.guard.IsLocked(ctx, email, ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if locked {
		return nil, ErrAccountLocked
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, s.recordFailure(ctx, email, ip, "")
	}
	ident, err := s.identityRepo.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		return nil, s.recordFailure(ctx, email, ip, user.ID)
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		return nil, s.recordFailure(ctx, email, ip, user.ID)
	}

	if err := s.guard.ClearOnSuccess(ctx, email, ip); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	sess, issued, err := s.registry.Create(ctx, user, ip, userAgent)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, user.ID, "login", "session", fmt.Sprintf(`{"session_id":%q}`, sess.ID))
	s.emitEvent(ctx, user.ID, sess.ID, telemetrydomain.EventLoginSuccess, ip)
	return &AuthResult{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		ExpiresAt:    issued.AccessExpiresAt,
		UserID:       user.ID,
		Role:         string(user.Role),
		SessionID:    sess.ID,
	}, nil
}

// recordFailure counts a failed attempt and returns the error for the caller
// to surface. Every failure path returns ErrInvalidCredentials so responses
// do not leak whether the email exists.
func (s *AuthService) recordFailure(ctx context.Context, email, ip, userID string) error {
	lockedUntil, err := s.guard.RecordFailure(ctx, email, ip)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.emitEvent(ctx, userID, "", telemetrydomain.EventLoginFailure, ip)
	if lockedUntil != nil {
		s.logAudit(ctx, userID, "account_locked", "user", fmt.Sprintf(`{"locked_until":%q}`, lockedUntil.Format(time.RFC3339)))
		s.emitEvent(ctx, userID, "", telemetrydomain.EventAccountLocked, ip)
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}

// Refresh validates the refresh token, rotates it, and returns new tokens.
// The rotation is a conditional swap on the stored jti: exactly one caller
// wins for a given token, and presenting a superseded token revokes every
// session the user has.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	sess, err := s.sessionRepo.GetByID(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.RevokedAt != nil || !sess.ExpiresAt.After(time.Now().UTC()) {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != claims.ID {
		return nil, s.handleReuse(ctx, claims.Subject, ip)
	}
	if sess.RefreshTokenHash != "" && !security.TokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}

	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sess.ID, claims.Subject, claims.Role)
	if err != nil {
		return nil, err
	}
	won, err := s.sessionRepo.RotateRefreshToken(ctx, sess.ID, claims.ID, newJti, security.HashToken(newRefresh))
	if err != nil {
		return nil, err
	}
	if !won {
		// Another caller swapped first; this presentation is a replay.
		return nil, s.handleReuse(ctx, claims.Subject, ip)
	}
	// The superseded pair is dead from here on: the old refresh jti, and the
	// access token it was issued alongside.
	if err := s.revocations.Revoke(ctx, claims.ID, revocation.ReasonRotated, sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if sess.AccessJti != "" {
		if err := s.revocations.Revoke(ctx, sess.AccessJti, revocation.ReasonRotated, sess.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	binding := security.NewBinding(ip, sess.UserAgent)
	accessToken, accessJti, accessExp, err := s.tokens.IssueAccess(sess.ID, claims.Subject, claims.Role, binding)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateAccessJti(ctx, sess.ID, accessJti); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_ = s.sessionRepo.UpdateLastActivity(ctx, sess.ID, now)

	s.emitEvent(ctx, claims.Subject, sess.ID, telemetrydomain.EventTokenRefreshed, ip)
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		UserID:       claims.Subject,
		Role:         claims.Role,
		SessionID:    sess.ID,
	}, nil
}

func (s *AuthService) handleReuse(ctx context.Context, userID, ip string) error {
	if err := s.registry.TerminateAll(ctx, userID, revocation.ReasonReuse); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logAudit(ctx, userID, "refresh_reuse", "session", "")
	s.emitEvent(ctx, userID, "", telemetrydomain.EventRefreshReuse, ip)
	return ErrRefreshTokenReuse
}

// Logout revokes the session identified by the refresh token, or by
// sessionID when the caller authenticated with a Bearer access token.
// Invalid tokens are a no-op, matching the idempotent semantics of logout.
func (s *AuthService) Logout(ctx context.Context, refreshToken, sessionID string) error {
	if refreshToken != "" {
		claims, err := s.tokens.ValidateRefresh(refreshToken)
		if err != nil {
			return nil
		}
		sessionID = claims.SessionID
	}
	if sessionID == "" {
		return nil
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.RevokedAt != nil {
		return nil
	}
	if err := s.registry.Terminate(ctx, sess, revocation.ReasonLogout); err != nil {
		return err
	}
	s.logAudit(ctx, sess.UserID, "logout", "session", fmt.Sprintf(`{"session_id":%q}`, sess.ID))
	s.emitEvent(ctx, sess.UserID, sess.ID, telemetrydomain.EventSessionTerminated, sess.IPAddress)
	return nil
}

// Verify validates an access token end to end: signature and lifetime,
// device binding, revocation store, and session liveness. A revocation store
// failure denies the token rather than admitting it unchecked.
func (s *AuthService) Verify(ctx context.Context, accessToken, ip, userAgent string) (*VerifyResult, error) {
	claims, err := s.tokens.ValidateAccess(accessToken, security.NewBinding(ip, userAgent))
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	sess, err := s.registry.Validate(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrTokenRevoked
	}
	_ = s.registry.Touch(ctx, sess.ID)

	suspicious := s.registry.SuspiciousActivity(sess, ip, userAgent)
	if suspicious {
		s.emitEvent(ctx, sess.UserID, sess.ID, telemetrydomain.EventSuspiciousActivity, ip)
		if err := s.forceReauthIfRequired(ctx, sess); err != nil {
			return nil, err
		}
	}
	return &VerifyResult{Claims: claims, Session: sess, Suspicious: suspicious}, nil
}

// forceReauthIfRequired asks the policy engine whether a session flagged as
// suspicious may continue. When policy demands re-authentication the session
// is terminated so the decision sticks across replicas. Policy or lookup
// failures leave the flagged session alive; flagging alone is not denial.
func (s *AuthService) forceReauthIfRequired(ctx context.Context, sess *sessiondomain.Session) error {
	if s.policy == nil {
		return nil
	}
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil || user == nil {
		return nil
	}
	res, err := s.policy.EvaluateAuthn(ctx, user, true)
	if err != nil || !res.ForceReauth {
		return nil
	}
	if err := s.registry.Terminate(ctx, sess, revocation.ReasonSuspicious); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.logAudit(ctx, sess.UserID, "verify_denied", "session", fmt.Sprintf(`{"session_id":%q}`, sess.ID))
	return ErrReauthRequired
}

// ChangePassword verifies the current password, validates the new one
// against policy and history, and revokes the user's other sessions.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword, keepSessionID string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || !user.IsActive {
		return ErrInvalidCredentials
	}
	ident, err := s.identityRepo.GetByUserAndProvider(ctx, userID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return err
	}
	if ident == nil || s.hasher.Compare(ident.PasswordHash, []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}

	history, err := s.identityRepo.RecentPasswordHashes(ctx, userID, credential.HistoryDepth)
	if err != nil {
		return err
	}
	result := credential.Validate(newPassword, credential.Context{Email: user.Email, History: history})
	if !result.Valid {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(result.Errors, "; "))
	}

	newHash, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.identityRepo.UpdatePasswordHash(ctx, ident.ID, newHash); err != nil {
		return err
	}

	// Other sessions were authenticated with the old credential.
	active, err := s.registry.ListActive(ctx, userID)
	if err != nil {
		return err
	}
	for _, sess := range active {
		if sess.ID == keepSessionID {
			continue
		}
		if err := s.registry.Terminate(ctx, sess, revocation.ReasonTerminated); err != nil {
			return err
		}
	}
	s.logAudit(ctx, userID, "password_changed", "user", "")
	return nil
}

func (s *AuthService) logAudit(ctx context.Context, userID, action, resource, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, action, resource, metadata)
	}
}

func (s *AuthService) emitEvent(ctx context.Context, userID, sessionID, eventType, ip string) {
	telemetry.EmitAsync(s.emitter, ctx, &telemetrydomain.SecurityEvent{
		UserID:    userID,
		SessionID: sessionID,
		EventType: eventType,
		Source:    "auth",
		IP:        ip,
		CreatedAt: time.Now().UTC(),
	})
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("email is required")
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return errors.New("invalid email format")
	}
	return nil
}
