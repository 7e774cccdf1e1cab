// seed inserts development sample data for local testing. Run via go run ./cmd/seed.
// Idempotent: skips inserts if the dev admin (admin@maritime-onboarding.local) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"maritime-onboarding/backend/internal/config"
	"maritime-onboarding/backend/internal/db"
	identitydomain "maritime-onboarding/backend/internal/identity/domain"
	identityrepo "maritime-onboarding/backend/internal/identity/repository"
	policydomain "maritime-onboarding/backend/internal/policy/domain"
	policyrepo "maritime-onboarding/backend/internal/policy/repository"
	"maritime-onboarding/backend/internal/security"
	userdomain "maritime-onboarding/backend/internal/user/domain"
	userrepo "maritime-onboarding/backend/internal/user/repository"
)

// defaultRegoPolicy matches the default authn policy in internal/policy/engine/opa_evaluator.go.
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

const (
	adminEmail   = "admin@maritime-onboarding.local"
	managerEmail = "manager@maritime-onboarding.local"
	crewEmail    = "crew@maritime-onboarding.local"
	devPassword  = "Tr0ub4dor&3xtra!"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	users := userrepo.NewPostgresRepository(pool)
	identities := identityrepo.NewPostgresRepository(pool)
	policies := policyrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (admin@maritime-onboarding.local exists). Skipping.")
		os.Exit(0)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	accounts := []struct {
		email string
		name  string
		role  userdomain.Role
	}{
		{adminEmail, "Dev Admin", userdomain.RoleAdmin},
		{managerEmail, "Fleet Manager", userdomain.RoleManager},
		{crewEmail, "Deck Crew", userdomain.RoleCrew},
	}

	for _, a := range accounts {
		u := &userdomain.User{
			ID:        uuid.New().String(),
			Email:     a.email,
			Name:      a.name,
			Role:      a.role,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", a.email, err)
		}
		if err := identities.Create(ctx, &identitydomain.Identity{
			ID:           uuid.New().String(),
			UserID:       u.ID,
			Provider:     identitydomain.IdentityProviderLocal,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}); err != nil {
			log.Fatalf("create identity %s: %v", a.email, err)
		}
	}

	if err := policies.Create(ctx, &policydomain.Policy{
		ID:        uuid.New().String(),
		Name:      "default-authn",
		Rules:     defaultRegoPolicy,
		Enabled:   true,
		CreatedAt: now,
	}); err != nil {
		log.Fatalf("create policy: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Admin login:   %s / %s\n", adminEmail, devPassword)
	fmt.Printf("Manager login: %s / %s\n", managerEmail, devPassword)
	fmt.Printf("Crew login:    %s / %s\n", crewEmail, devPassword)
}
