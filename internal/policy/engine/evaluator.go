package engine

import (
	"context"

	userdomain "maritime-onboarding/backend/internal/user/domain"
)

// AuthnResult holds the result of authentication policy evaluation.
type AuthnResult struct {
	PasswordlessAllowed bool
	ForceReauth         bool
	MaxSessions         int
}

// Evaluator evaluates authentication policies using OPA or other engines.
type Evaluator interface {
	// EvaluateAuthn evaluates authentication policy for the given user and
	// request context. Returns whether passwordless sign-in is allowed,
	// whether the user must re-authenticate, and the per-user session cap.
	EvaluateAuthn(ctx context.Context, user *userdomain.User, suspicious bool) (AuthnResult, error)
}
