package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maritime-onboarding/backend/internal/audit"
	auditrepo "maritime-onboarding/backend/internal/audit/repository"
	"maritime-onboarding/backend/internal/config"
	"maritime-onboarding/backend/internal/db"
	identityrepo "maritime-onboarding/backend/internal/identity/repository"
	identityservice "maritime-onboarding/backend/internal/identity/service"
	"maritime-onboarding/backend/internal/lockout"
	magiclinkrepo "maritime-onboarding/backend/internal/magiclink/repository"
	magiclinkservice "maritime-onboarding/backend/internal/magiclink/service"
	"maritime-onboarding/backend/internal/mailer"
	policyengine "maritime-onboarding/backend/internal/policy/engine"
	policyrepo "maritime-onboarding/backend/internal/policy/repository"
	"maritime-onboarding/backend/internal/revocation"
	"maritime-onboarding/backend/internal/security"
	"maritime-onboarding/backend/internal/server"
	"maritime-onboarding/backend/internal/server/middleware"
	sessionrepo "maritime-onboarding/backend/internal/session/repository"
	sessionservice "maritime-onboarding/backend/internal/session/service"
	"maritime-onboarding/backend/internal/telemetry"
	otelsetup "maritime-onboarding/backend/internal/telemetry/otel"
	"maritime-onboarding/backend/internal/telemetry/producer"
	"maritime-onboarding/backend/internal/user/repository"
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

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "maritime-auth", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey,
		cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	userRepo := repository.NewPostgresRepository(pool)
	identityRepo := identityrepo.NewPostgresRepository(pool)
	sessionRepo := sessionrepo.NewPostgresRepository(pool)
	linkRepo := magiclinkrepo.NewPostgresRepository(pool)
	auditRepo := auditrepo.NewPostgresRepository(pool)
	polRepo := policyrepo.NewPostgresRepository(pool)

	revocations := revocation.NewPostgresStore(pool, cfg.Retention())
	lockouts := lockout.NewPostgresRepository(pool)

	guard := lockout.NewGuard(lockouts, cfg.LockoutThreshold)
	registry := sessionservice.NewRegistry(sessionRepo, revocations, tokens,
		cfg.MaxSessionsPerUser, cfg.RefreshTTL())

	evaluator := policyengine.NewOPAEvaluator(polRepo, cfg.MaxSessionsPerUser)
	registry.SetSessionLimiter(evaluator)
	auditLogger := audit.NewLogger(auditRepo, middleware.ClientIPFromContext)

	emitters := []telemetry.EventEmitter{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	var kafkaProducer *producer.KafkaProducer
	if brokers := cfg.SecurityKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err = producer.NewKafkaProducer(brokers, cfg.SecurityKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		defer kafkaProducer.Close()
		emitters = append(emitters, kafkaProducer)
		log.Printf("security events flowing to kafka topic %s", cfg.SecurityKafkaTopic)
	}
	emitter := telemetry.Fanout(emitters)

	authSvc := identityservice.NewAuthService(
		userRepo, identityRepo, sessionRepo, registry, guard, revocations,
		security.NewHasher(cfg.BcryptCost), tokens, evaluator, auditLogger, emitter)

	linkSvc := magiclinkservice.NewService(
		linkRepo, userRepo, evaluator, registry, mailer.NewLogSender(),
		auditLogger, cfg.LinkTTL(), cfg.MagicLinkBaseURL)

	router := server.SetupRouter(server.Deps{
		Auth:        authSvc,
		Verifier:    authSvc,
		MagicLink:   linkSvc,
		Sessions:    registry,
		AuditLogger: auditLogger,
		DB:          pool,
		Policy:      evaluator,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("auth server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down auth server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Let in-flight async security events drain before the exporters close.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("auth server stopped")
}
