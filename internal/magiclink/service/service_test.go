package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"maritime-onboarding/backend/internal/magiclink/repository"
	"maritime-onboarding/backend/internal/revocation"
	"maritime-onboarding/backend/internal/security"
	sessionrepo "maritime-onboarding/backend/internal/session/repository"
	sessionservice "maritime-onboarding/backend/internal/session/service"
	userdomain "maritime-onboarding/backend/internal/user/domain"
)

type mockUserRepo struct {
	users map[string]*userdomain.User // keyed by email
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return m.users[email], nil
}

func (m *mockUserRepo) Create(ctx context.Context, u *userdomain.User) error {
	m.users[u.Email] = u
	return nil
}

// crewOnlyPolicy mirrors the default passwordless rule.
type crewOnlyPolicy struct{}

func (crewOnlyPolicy) PasswordlessAllowed(_ context.Context, role string) (bool, error) {
	return role == "crew", nil
}

type capturingSender struct {
	mu    sync.Mutex
	links []string
	fail  bool
}

func (s *capturingSender) SendMagicLink(_ context.Context, _ string, link string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp down")
	}
	s.links = append(s.links, link)
	return nil
}

func (s *capturingSender) lastToken(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.links) == 0 {
		t.Fatal("no link was sent")
	}
	link := s.links[len(s.links)-1]
	i := strings.Index(link, "token=")
	if i < 0 {
		t.Fatalf("link %q has no token parameter", link)
	}
	return link[i+len("token="):]
}

type noopAudit struct{}

func (noopAudit) LogEvent(context.Context, string, string, string, string) {}

func newTestService(t *testing.T) (*Service, *capturingSender, *repository.MemoryRepository) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider() error = %v", err)
	}
	registry := sessionservice.NewRegistry(
		sessionrepo.NewMemoryRepository(),
		revocation.NewMemoryStore(24*time.Hour),
		tokens, 3, 24*time.Hour,
	)
	users := &mockUserRepo{users: map[string]*userdomain.User{
		"crew@example.com": {
			ID: "u-crew", Email: "crew@example.com",
			Role: userdomain.RoleCrew, IsActive: true,
		},
		"admin@example.com": {
			ID: "u-admin", Email: "admin@example.com",
			Role: userdomain.RoleAdmin, IsActive: true,
		},
		"former@example.com": {
			ID: "u-former", Email: "former@example.com",
			Role: userdomain.RoleCrew, IsActive: false,
		},
	}}
	sender := &capturingSender{}
	links := repository.NewMemoryRepository()
	svc := NewService(links, users, crewOnlyPolicy{}, registry, sender, noopAudit{}, 15*time.Minute, "https://onboarding.example.com")
	return svc, sender, links
}

func TestRequestAndExchange(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newTestService(t)

	link, err := svc.Request(ctx, "crew@example.com", "203.0.113.7")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if link.TokenHash == "" {
		t.Error("stored link has no token hash")
	}

	token := sender.lastToken(t)
	if strings.Contains(token, link.TokenHash) {
		t.Error("raw token must not contain the stored hash")
	}
	if security.HashToken(token) != link.TokenHash {
		t.Error("stored hash does not match sent token")
	}

	sess, issued, err := svc.Exchange(ctx, token, "203.0.113.7", "curl/8.0")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if sess.UserID != "u-crew" {
		t.Errorf("session user = %q, want u-crew", sess.UserID)
	}
	if issued.AccessToken == "" || issued.RefreshToken == "" {
		t.Error("exchange did not mint a token pair")
	}
}

func TestExchangeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newTestService(t)

	if _, err := svc.Request(ctx, "crew@example.com", "203.0.113.7"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	token := sender.lastToken(t)

	if _, _, err := svc.Exchange(ctx, token, "203.0.113.7", "curl/8.0"); err != nil {
		t.Fatalf("first Exchange() error = %v", err)
	}
	_, _, err := svc.Exchange(ctx, token, "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrLinkUsed) {
		t.Errorf("second Exchange() error = %v, want ErrLinkUsed", err)
	}
}

func TestExchangeSupersedesOtherLinks(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newTestService(t)

	if _, err := svc.Request(ctx, "crew@example.com", "203.0.113.7"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	firstToken := sender.lastToken(t)
	if _, err := svc.Request(ctx, "crew@example.com", "203.0.113.7"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	secondToken := sender.lastToken(t)

	if _, _, err := svc.Exchange(ctx, secondToken, "203.0.113.7", "curl/8.0"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	_, _, err := svc.Exchange(ctx, firstToken, "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrLinkUsed) {
		t.Errorf("exchange of superseded link error = %v, want ErrLinkUsed", err)
	}
}

func TestExchangeExpiredLink(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newTestService(t)

	if _, err := svc.Request(ctx, "crew@example.com", "203.0.113.7"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	token := sender.lastToken(t)

	svc.nowF = func() time.Time { return time.Now().UTC().Add(16 * time.Minute) }
	_, _, err := svc.Exchange(ctx, token, "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrLinkExpired) {
		t.Errorf("Exchange() error = %v, want ErrLinkExpired", err)
	}
}

func TestExchangeUnknownToken(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, _, err := svc.Exchange(ctx, "bogus-token", "203.0.113.7", "curl/8.0")
	if !errors.Is(err, ErrLinkNotFound) {
		t.Errorf("Exchange() error = %v, want ErrLinkNotFound", err)
	}
}

func TestRequestDeniedForElevatedRoles(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Request(ctx, "admin@example.com", "203.0.113.7")
	if !errors.Is(err, ErrNotEligible) {
		t.Errorf("admin Request() error = %v, want ErrNotEligible", err)
	}
}

func TestRequestUnknownAndInactiveUsers(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	if _, err := svc.Request(ctx, "nobody@example.com", "203.0.113.7"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("unknown user Request() error = %v, want ErrUnknownUser", err)
	}
	if _, err := svc.Request(ctx, "former@example.com", "203.0.113.7"); !errors.Is(err, ErrUserInactive) {
		t.Errorf("inactive user Request() error = %v, want ErrUserInactive", err)
	}
}

func TestRequestRateLimited(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for i := 0; i < requestLimit; i++ {
		if _, err := svc.Request(ctx, "crew@example.com", "203.0.113.7"); err != nil {
			t.Fatalf("Request() #%d error = %v", i+1, err)
		}
	}
	_, err := svc.Request(ctx, "crew@example.com", "203.0.113.7")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Request() over limit error = %v, want ErrRateLimited", err)
	}
}

func TestRequestSenderFailure(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newTestService(t)
	sender.fail = true

	if _, err := svc.Request(ctx, "crew@example.com", "203.0.113.7"); err == nil {
		t.Error("Request() error = nil with failing sender, want error")
	}
}

func TestServiceDefaultClockAdvances(t *testing.T) {
	// A clock stuck at construction time would age every link against the
	// same instant, so links minted later would look expired on arrival.
	svc, _, _ := newTestService(t)

	first := svc.nowF()
	time.Sleep(15 * time.Millisecond)
	if second := svc.nowF(); !second.After(first) {
		t.Errorf("service clock did not advance past %v", first)
	}
}

func TestConcurrentExchangeSingleWinner(t *testing.T) {
	ctx := context.Background()
	svc, sender, _ := newTestService(t)

	if _, err := svc.Request(ctx, "crew@example.com", "203.0.113.7"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	token := sender.lastToken(t)

	const callers = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.Exchange(ctx, token, "203.0.113.7", "curl/8.0"); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("concurrent exchanges won = %d, want exactly 1", won)
	}
}
