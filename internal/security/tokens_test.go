package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenProvider_IssueAccessAndRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	sessionID, userID, role := "s1", "u1", "crew"

	access, accessJti, exp, err := p.IssueAccess(sessionID, userID, role, nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" || accessJti == "" {
		t.Fatal("access token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	refresh, jti, refreshExp, err := p.IssueRefresh(sessionID, userID, role)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if refresh == "" || jti == "" {
		t.Fatal("refresh token or jti empty")
	}
	if refreshExp.Before(time.Now()) {
		t.Fatal("refresh expires at in the past")
	}

	claims, err := p.ValidateRefresh(refresh)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if claims.SessionID != sessionID || claims.ID != jti || claims.Subject != userID || claims.Role != role {
		t.Errorf("ValidateRefresh: got sessionID=%q jti=%q sub=%q role=%q", claims.SessionID, claims.ID, claims.Subject, claims.Role)
	}
}

func TestTokenProvider_AccessLifetimeNeverExceedsCeiling(t *testing.T) {
	// Even a provider configured with an absurd TTL must not mint tokens over 2h.
	p, err := NewTestTokenProviderTTL(10*time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTestTokenProviderTTL: %v", err)
	}
	access, _, _, err := p.IssueAccess("s1", "u1", "crew", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := p.ValidateAccess(access, nil)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if lifetime > MaxAccessLifetime {
		t.Errorf("token lifetime = %v, must not exceed %v", lifetime, MaxAccessLifetime)
	}
}

func TestTokenProvider_ValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, jti, _, err := p.IssueAccess("s1", "u1", "manager", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	claims, err := p.ValidateAccess(access, nil)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.SessionID != "s1" || claims.Subject != "u1" || claims.Role != "manager" || claims.ID != jti {
		t.Errorf("ValidateAccess: got sessionID=%q sub=%q role=%q jti=%q", claims.SessionID, claims.Subject, claims.Role, claims.ID)
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	if _, err := p.ValidateAccess("invalid-token", nil); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
	if _, err := p.ValidateRefresh("invalid-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateRefresh invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_ValidateAccessExpired(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	now := time.Now().UTC()
	token, err := p.sign(AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-expired",
			Subject:   "u1",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		},
		Role:      "crew",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := p.ValidateAccess(token, nil); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("want ErrTokenExpired, got %v", err)
	}
}

func TestTokenProvider_RejectsOverLongLifetimeEvenWithValidSignature(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	// A correctly signed token whose lifetime is 10h: signature and expiry pass,
	// the lifetime policy check must still reject it.
	now := time.Now().UTC()
	token, err := p.sign(AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-long",
			Subject:   "u1",
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Hour)),
		},
		Role:      "crew",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := p.ValidateAccess(token, nil); !errors.Is(err, ErrTokenLifetime) {
		t.Errorf("want ErrTokenLifetime, got %v", err)
	}
}

func TestTokenProvider_BindingMismatch(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	issued := NewBinding("1.2.3.4", "Chrome")
	access, _, _, err := p.IssueAccess("s1", "u1", "crew", issued)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	if _, err := p.ValidateAccess(access, issued); err != nil {
		t.Fatalf("ValidateAccess same binding: %v", err)
	}

	otherIP := NewBinding("9.9.9.9", "Chrome")
	if _, err := p.ValidateAccess(access, otherIP); !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("different IP: want ErrBindingMismatch, got %v", err)
	}

	otherUA := NewBinding("1.2.3.4", "Firefox")
	if _, err := p.ValidateAccess(access, otherUA); !errors.Is(err, ErrBindingMismatch) {
		t.Errorf("different UA: want ErrBindingMismatch, got %v", err)
	}
}

func TestTokenProvider_UnboundTokenSkipsBindingCheck(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	access, _, _, err := p.IssueAccess("s1", "u1", "crew", nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	// No binding data in the token: validation with any context succeeds.
	if _, err := p.ValidateAccess(access, NewBinding("9.9.9.9", "curl")); err != nil {
		t.Errorf("ValidateAccess unbound token: %v", err)
	}
}

func TestTokenProvider_WrongIssuerRejected(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	now := time.Now().UTC()
	token, err := p.sign(AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-iss",
			Subject:   "u1",
			Issuer:    "someone-else",
			Audience:  jwt.ClaimStrings{"test-audience"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		Role:      "crew",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := p.ValidateAccess(token, nil); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("want ErrInvalidToken for wrong issuer, got %v", err)
	}
}
