// Package server wires handlers and middleware into the HTTP router.
package server

import (
	"github.com/gin-gonic/gin"

	"maritime-onboarding/backend/internal/audit"
	healthhandler "maritime-onboarding/backend/internal/health/handler"
	identityhandler "maritime-onboarding/backend/internal/identity/handler"
	magiclinkhandler "maritime-onboarding/backend/internal/magiclink/handler"
	"maritime-onboarding/backend/internal/server/middleware"
	sessionhandler "maritime-onboarding/backend/internal/session/handler"
	userdomain "maritime-onboarding/backend/internal/user/domain"
)

// Deps carries everything the router needs. Optional fields may be nil and
// their routes or middleware are skipped.
type Deps struct {
	Auth      identityhandler.AuthService
	Verifier  middleware.Verifier
	MagicLink magiclinkhandler.LinkService
	Sessions  sessionhandler.Registry

	// AuditLogger records per-request audit entries. Optional.
	AuditLogger audit.AuditLogger
	// DB backs the readiness probe. Optional.
	DB healthhandler.Pinger
	// Policy backs the readiness probe. Optional.
	Policy healthhandler.PolicyChecker
}

// SetupRouter builds the gin engine with all auth routes, probes, and
// middleware attached.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.ClientIP())
	r.Use(middleware.Audit(d.AuditLogger))

	health := healthhandler.NewHandler(d.DB, d.Policy)
	r.GET("/healthz", health.Live)
	r.GET("/readyz", health.Ready)

	authH := identityhandler.NewHandler(d.Auth)
	linkH := magiclinkhandler.NewHandler(d.MagicLink)
	sessH := sessionhandler.NewHandler(d.Sessions)

	authn := middleware.Auth(d.Verifier)

	grp := r.Group("/auth")
	{
		grp.POST("/login", authH.Login)
		grp.POST("/refresh", authH.Refresh)
		grp.POST("/logout", middleware.OptionalAuth(d.Verifier), authH.Logout)
		grp.POST("/magic-link", linkH.Request)
		grp.POST("/magic-link/exchange", linkH.Exchange)
		grp.GET("/magic-link/verify", linkH.Exchange)

		grp.GET("/verify", authn, authH.Verify)
		grp.PATCH("/password", authn, authH.ChangePassword)
		grp.GET("/sessions", authn, sessH.List)
		grp.DELETE("/sessions/:id", authn, sessH.Terminate)
		grp.POST("/register", authn, middleware.RequireRole(string(userdomain.RoleAdmin)), authH.Register)
	}

	return r
}
