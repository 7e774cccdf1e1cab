package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	identitydomain "maritime-onboarding/backend/internal/identity/domain"
	"maritime-onboarding/backend/internal/lockout"
	policyengine "maritime-onboarding/backend/internal/policy/engine"
	"maritime-onboarding/backend/internal/revocation"
	"maritime-onboarding/backend/internal/security"
	sessionrepo "maritime-onboarding/backend/internal/session/repository"
	sessionservice "maritime-onboarding/backend/internal/session/service"
	userdomain "maritime-onboarding/backend/internal/user/domain"
)

type memUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		byID:    make(map[string]*userdomain.User),
		byEmail: make(map[string]*userdomain.User),
	}
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEmail[email], nil
}

func (r *memUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[u.ID] = u
	r.byEmail[u.Email] = u
	return nil
}

type memIdentityRepo struct {
	mu      sync.Mutex
	m       map[string]*identitydomain.Identity
	history map[string][]string // userID -> hashes, newest first
}

func newMemIdentityRepo() *memIdentityRepo {
	return &memIdentityRepo{
		m:       make(map[string]*identitydomain.Identity),
		history: make(map[string][]string),
	}
}

func (r *memIdentityRepo) GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.m {
		if i.UserID == userID && i.Provider == provider {
			return i, nil
		}
	}
	return nil, nil
}

func (r *memIdentityRepo) Create(ctx context.Context, i *identitydomain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[i.ID] = i
	r.history[i.UserID] = append([]string{i.PasswordHash}, r.history[i.UserID]...)
	return nil
}

func (r *memIdentityRepo) UpdatePasswordHash(ctx context.Context, identityID, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.m[identityID]
	if !ok {
		return errors.New("identity not found")
	}
	i.PasswordHash = newHash
	r.history[i.UserID] = append([]string{newHash}, r.history[i.UserID]...)
	return nil
}

func (r *memIdentityRepo) RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.history[userID]
	if len(h) > limit {
		h = h[:limit]
	}
	out := make([]string, len(h))
	copy(out, h)
	return out, nil
}

type authFixture struct {
	svc      *AuthService
	users    *memUserRepo
	sessions *sessionrepo.MemoryRepository
	store    *revocation.MemoryStore
	registry *sessionservice.Registry
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider() error = %v", err)
	}
	users := newMemUserRepo()
	identities := newMemIdentityRepo()
	sessions := sessionrepo.NewMemoryRepository()
	store := revocation.NewMemoryStore(24 * time.Hour)
	registry := sessionservice.NewRegistry(sessions, store, tokens, 3, 24*time.Hour)
	guard := lockout.NewGuard(lockout.NewMemoryRepository(), 5)
	hasher := security.NewHasher(4) // MinCost keeps the suite fast

	svc := NewAuthService(users, identities, sessions, registry, guard, store, hasher, tokens, nil, nil, nil)
	return &authFixture{svc: svc, users: users, sessions: sessions, store: store, registry: registry}
}

const testPassword = "Tr0ub4dor&3xtra!"

func (f *authFixture) register(t *testing.T, email string, role userdomain.Role) *userdomain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), email, testPassword, "Test User", role)
	if err != nil {
		t.Fatalf("Register(%s) error = %v", email, err)
	}
	return u
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), "crew@example.com", "Passw0rd!", "Test", userdomain.RoleCrew)
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Register() error = %v, want ErrWeakPassword", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	_, err := f.svc.Register(context.Background(), "crew@example.com", testPassword, "Test", userdomain.RoleCrew)
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Errorf("Register() error = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestLoginAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u := f.register(t, "crew@example.com", userdomain.RoleCrew)

	res, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.UserID != u.ID || res.Role != "crew" {
		t.Errorf("Login() = %+v, want user %s role crew", res, u.ID)
	}

	ver, err := f.svc.Verify(ctx, res.AccessToken, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ver.Claims.Subject != u.ID || ver.Session.ID != res.SessionID {
		t.Errorf("Verify() = %+v, want subject %s session %s", ver, u.ID, res.SessionID)
	}
	if ver.Suspicious {
		t.Error("same-device verify flagged suspicious")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	_, err := f.svc.Login(ctx, "crew@example.com", "WrongPass1!xx", "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownEmailSameError(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.Login(ctx, "nobody@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginLockout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	var err error
	for i := 0; i < 5; i++ {
		_, err = f.svc.Login(ctx, "crew@example.com", "WrongPass1!xx", "203.0.113.7", "curl/8.0")
	}
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("5th failed Login() error = %v, want ErrAccountLocked", err)
	}

	// Even the correct password is refused while locked.
	_, err = f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrAccountLocked) {
		t.Errorf("Login() while locked error = %v, want ErrAccountLocked", err)
	}

	// A different IP is unaffected.
	if _, err := f.svc.Login(ctx, "crew@example.com", testPassword, "198.51.100.9", "curl/8.0"); err != nil {
		t.Errorf("Login() from other IP error = %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	res, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	rotated, err := f.svc.Refresh(ctx, res.RefreshToken, "203.0.113.7")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if rotated.RefreshToken == res.RefreshToken {
		t.Error("Refresh() did not rotate the refresh token")
	}
	if rotated.SessionID != res.SessionID {
		t.Errorf("Refresh() session = %q, want %q", rotated.SessionID, res.SessionID)
	}

	// New pair stays valid.
	if _, err := f.svc.Verify(ctx, rotated.AccessToken, "203.0.113.7", "curl/8.0"); err != nil {
		t.Errorf("Verify() of refreshed access token error = %v", err)
	}
}

func TestRefreshReuseRevokesAllSessions(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	res, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	other, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("second Login() error = %v", err)
	}

	rotated, err := f.svc.Refresh(ctx, res.RefreshToken, "203.0.113.7")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Presenting the superseded token is reuse: every session dies.
	_, err = f.svc.Refresh(ctx, res.RefreshToken, "203.0.113.7")
	if !errors.Is(err, ErrRefreshTokenReuse) {
		t.Fatalf("replayed Refresh() error = %v, want ErrRefreshTokenReuse", err)
	}

	if _, err := f.svc.Refresh(ctx, rotated.RefreshToken, "203.0.113.7"); err == nil {
		t.Error("rotated token still works after reuse detection")
	}
	if _, err := f.svc.Verify(ctx, other.AccessToken, "203.0.113.7", "curl/8.0"); err == nil {
		t.Error("other session's access token still works after reuse detection")
	}
}

func TestRefreshRevokesSupersededAccessToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	res, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := f.svc.Refresh(ctx, res.RefreshToken, "203.0.113.7"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// Rotation retires the whole old pair, not just the refresh token.
	if _, err := f.svc.Verify(ctx, res.AccessToken, "203.0.113.7", "curl/8.0"); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Verify() of pre-rotation access token error = %v, want ErrTokenRevoked", err)
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	res, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := f.svc.Logout(ctx, res.RefreshToken, ""); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := f.svc.Verify(ctx, res.AccessToken, "203.0.113.7", "curl/8.0"); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Verify() after logout error = %v, want ErrTokenRevoked", err)
	}
	if _, err := f.svc.Refresh(ctx, res.RefreshToken, "203.0.113.7"); err == nil {
		t.Error("Refresh() after logout succeeded")
	}

	// Logout is idempotent; garbage tokens are a no-op.
	if err := f.svc.Logout(ctx, res.RefreshToken, ""); err != nil {
		t.Errorf("repeat Logout() error = %v", err)
	}
	if err := f.svc.Logout(ctx, "garbage", ""); err != nil {
		t.Errorf("Logout(garbage) error = %v", err)
	}
}

func TestVerifyFailsClosedOnStoreError(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	res, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	f.svc.revocations = failingStore{}
	_, err = f.svc.Verify(ctx, res.AccessToken, "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Verify() with failing store error = %v, want ErrStoreUnavailable", err)
	}
}

func TestVerifyBindingMismatch(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.register(t, "crew@example.com", userdomain.RoleCrew)

	res, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	_, err = f.svc.Verify(ctx, res.AccessToken, "198.51.100.9", "curl/8.0")
	if !errors.Is(err, security.ErrBindingMismatch) {
		t.Errorf("Verify() from other network error = %v, want ErrBindingMismatch", err)
	}
}

type stubEvaluator struct {
	res policyengine.AuthnResult
	err error
}

func (s stubEvaluator) EvaluateAuthn(context.Context, *userdomain.User, bool) (policyengine.AuthnResult, error) {
	return s.res, s.err
}

// An unbound login (no IP or user agent captured) issues a token valid from
// anywhere, so a later request from a real device changes the fingerprint
// without tripping token binding.
func unboundSuspiciousLogin(t *testing.T, f *authFixture) *AuthResult {
	t.Helper()
	f.register(t, "crew@example.com", userdomain.RoleCrew)
	res, err := f.svc.Login(context.Background(), "crew@example.com", testPassword, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return res
}

func TestVerifyForcesReauthWhenPolicyDemandsIt(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.svc.policy = stubEvaluator{res: policyengine.AuthnResult{ForceReauth: true}}
	res := unboundSuspiciousLogin(t, f)

	_, err := f.svc.Verify(ctx, res.AccessToken, "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("Verify() from new device error = %v, want ErrReauthRequired", err)
	}

	// The session was terminated, not merely denied once.
	if _, err := f.svc.Verify(ctx, res.AccessToken, "", ""); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Verify() after forced re-auth error = %v, want ErrTokenRevoked", err)
	}
}

func TestVerifyOnlyFlagsWhenPolicyAllowsContinuing(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.svc.policy = stubEvaluator{res: policyengine.AuthnResult{ForceReauth: false}}
	res := unboundSuspiciousLogin(t, f)

	ver, err := f.svc.Verify(ctx, res.AccessToken, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ver.Suspicious {
		t.Error("fingerprint change not flagged as suspicious")
	}
}

func TestVerifyKeepsSuspiciousSessionOnPolicyError(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.svc.policy = stubEvaluator{err: errors.New("opa unavailable")}
	res := unboundSuspiciousLogin(t, f)

	ver, err := f.svc.Verify(ctx, res.AccessToken, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ver.Suspicious {
		t.Error("fingerprint change not flagged as suspicious")
	}
}

func TestChangePasswordRejectsHistoryReuse(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u := f.register(t, "crew@example.com", userdomain.RoleCrew)

	err := f.svc.ChangePassword(ctx, u.ID, testPassword, testPassword, "")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("ChangePassword() reusing current error = %v, want ErrWeakPassword", err)
	}

	const next = "N3w&Different#Pass"
	if err := f.svc.ChangePassword(ctx, u.ID, testPassword, next, ""); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := f.svc.Login(ctx, "crew@example.com", next, "203.0.113.7", "curl/8.0"); err != nil {
		t.Errorf("Login() with new password error = %v", err)
	}
	if _, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() with old password error = %v, want ErrInvalidCredentials", err)
	}
}

func TestChangePasswordTerminatesOtherSessions(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u := f.register(t, "crew@example.com", userdomain.RoleCrew)

	keep, err := f.svc.Login(ctx, "crew@example.com", testPassword, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	other, err := f.svc.Login(ctx, "crew@example.com", testPassword, "198.51.100.9", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("second Login() error = %v", err)
	}

	if err := f.svc.ChangePassword(ctx, u.ID, testPassword, "N3w&Different#Pass", keep.SessionID); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := f.svc.Verify(ctx, keep.AccessToken, "203.0.113.7", "curl/8.0"); err != nil {
		t.Errorf("kept session Verify() error = %v", err)
	}
	if _, err := f.svc.Verify(ctx, other.AccessToken, "198.51.100.9", "Mozilla/5.0"); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("other session Verify() error = %v, want ErrTokenRevoked", err)
	}
}

// failingStore simulates an unavailable revocation store.
type failingStore struct{}

func (failingStore) Revoke(context.Context, string, string, time.Time) error {
	return errors.New("store unavailable")
}

func (failingStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("store unavailable")
}

func (failingStore) CleanupExpired(context.Context) (int64, error) {
	return 0, errors.New("store unavailable")
}
