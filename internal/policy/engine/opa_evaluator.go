package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"maritime-onboarding/backend/internal/policy/repository"
	userdomain "maritime-onboarding/backend/internal/user/domain"
)

const defaultPolicyPackage = "maritime.authn"

// Default Rego policy that matches the built-in rules: passwordless sign-in
// is a crew convenience only, inactive or suspicious principals must
// re-authenticate, and the session cap is three.
const defaultRegoPolicy = `package maritime.authn

default passwordless_allowed = false
default force_reauth = false
default max_sessions = 3

passwordless_allowed if {
	input.user.role == "crew"
	input.user.is_active
}

force_reauth if {
	not input.user.is_active
}

force_reauth if {
	input.session.suspicious
}

max_sessions = input.platform.max_sessions if {
	input.platform.max_sessions > 0
}
`

// OPAEvaluator evaluates authentication policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo  repository.Repository
	maxSessions int
}

// NewOPAEvaluator returns an OPA-based policy evaluator. maxSessions is fed
// to policies as input.platform.max_sessions; policies may lower or raise it.
func NewOPAEvaluator(policyRepo repository.Repository, maxSessions int) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo, maxSessions: maxSessions}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	modules := map[string]string{"policy_0.rego": defaultRegoPolicy}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	q := rego.New(
		rego.Query(fmt.Sprintf("data.%s.passwordless_allowed", defaultPolicyPackage)),
		rego.Compiler(compiler),
		rego.Input(e.buildInput(nil, false)),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateAuthn evaluates authentication policy using OPA Rego policies.
func (e *OPAEvaluator) EvaluateAuthn(ctx context.Context, user *userdomain.User, suspicious bool) (AuthnResult, error) {
	input := e.buildInput(user, suspicious)

	// Load enabled operator policies; fall back to the default rules.
	var policies []string
	if e.policyRepo != nil {
		enabled, err := e.policyRepo.ListEnabled(ctx)
		if err != nil {
			log.Printf("policy: failed to load policies: %v", err)
		} else {
			for _, p := range enabled {
				if p.Enabled && p.Rules != "" {
					policies = append(policies, p.Rules)
				}
			}
		}
	}
	if len(policies) == 0 {
		policies = []string{defaultRegoPolicy}
	}

	result, err := e.evaluatePolicies(ctx, policies, input)
	if err != nil {
		log.Printf("policy: evaluation failed: %v, using defaults", err)
		return e.defaultResult(), nil
	}
	return result, nil
}

// PasswordlessAllowed evaluates only the passwordless rule for a role.
// Satisfies the magic link service's policy dependency.
func (e *OPAEvaluator) PasswordlessAllowed(ctx context.Context, role string) (bool, error) {
	res, err := e.EvaluateAuthn(ctx, &userdomain.User{Role: userdomain.Role(role), IsActive: true}, false)
	if err != nil {
		return false, err
	}
	return res.PasswordlessAllowed, nil
}

// MaxSessions evaluates the session cap for a user. Satisfies the session
// registry's limiter dependency; evaluation failure falls back to the
// configured default.
func (e *OPAEvaluator) MaxSessions(ctx context.Context, u *userdomain.User) int {
	res, err := e.EvaluateAuthn(ctx, u, false)
	if err != nil {
		return e.maxSessions
	}
	return res.MaxSessions
}

func (e *OPAEvaluator) buildInput(user *userdomain.User, suspicious bool) map[string]interface{} {
	userMap := map[string]interface{}{
		"id":        "",
		"role":      "",
		"is_active": false,
	}
	if user != nil {
		userMap["id"] = user.ID
		userMap["role"] = string(user.Role)
		userMap["is_active"] = user.IsActive
	}

	maxSessions := e.maxSessions
	if maxSessions <= 0 {
		maxSessions = 3
	}

	return map[string]interface{}{
		"platform": map[string]interface{}{
			"max_sessions": maxSessions,
		},
		"user": userMap,
		"session": map[string]interface{}{
			"suspicious": suspicious,
		},
	}
}

func (e *OPAEvaluator) evaluatePolicies(ctx context.Context, policies []string, input map[string]interface{}) (AuthnResult, error) {
	modules := make(map[string]string)
	for i, policy := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = policy
	}

	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return AuthnResult{}, fmt.Errorf("compile policies: %w", err)
	}

	out := e.defaultResult()

	pwQuery := rego.New(
		rego.Query(fmt.Sprintf("data.%s.passwordless_allowed", defaultPolicyPackage)),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	pwRS, err := pwQuery.Eval(ctx)
	if err == nil && len(pwRS) > 0 && len(pwRS[0].Expressions) > 0 {
		if v, ok := pwRS[0].Expressions[0].Value.(bool); ok {
			out.PasswordlessAllowed = v
		}
	}

	reauthQuery := rego.New(
		rego.Query(fmt.Sprintf("data.%s.force_reauth", defaultPolicyPackage)),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	reauthRS, err := reauthQuery.Eval(ctx)
	if err == nil && len(reauthRS) > 0 && len(reauthRS[0].Expressions) > 0 {
		if v, ok := reauthRS[0].Expressions[0].Value.(bool); ok {
			out.ForceReauth = v
		}
	}

	sessQuery := rego.New(
		rego.Query(fmt.Sprintf("data.%s.max_sessions", defaultPolicyPackage)),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	sessRS, err := sessQuery.Eval(ctx)
	if err == nil && len(sessRS) > 0 && len(sessRS[0].Expressions) > 0 {
		switch v := sessRS[0].Expressions[0].Value.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil && n > 0 {
				out.MaxSessions = int(n)
			}
		case float64:
			if n := int(v); n > 0 {
				out.MaxSessions = n
			}
		case int64:
			if v > 0 {
				out.MaxSessions = int(v)
			}
		}
	}

	return out, nil
}

func (e *OPAEvaluator) defaultResult() AuthnResult {
	maxSessions := e.maxSessions
	if maxSessions <= 0 {
		maxSessions = 3
	}
	return AuthnResult{
		PasswordlessAllowed: false,
		ForceReauth:         false,
		MaxSessions:         maxSessions,
	}
}
