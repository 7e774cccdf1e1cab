// Worker runs periodic store cleanup and, when Kafka is configured, ships
// security events from Kafka to Loki. Set DATABASE_URL; optionally
// KAFKA_BROKERS, SECURITY_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"maritime-onboarding/backend/internal/config"
	"maritime-onboarding/backend/internal/db"
	"maritime-onboarding/backend/internal/lockout"
	magiclinkrepo "maritime-onboarding/backend/internal/magiclink/repository"
	"maritime-onboarding/backend/internal/revocation"
	sessionrepo "maritime-onboarding/backend/internal/session/repository"
	"maritime-onboarding/backend/internal/telemetry/loki"
)

// inertLockoutAge is how long a lockout record may sit untouched before cleanup removes it.
const inertLockoutAge = 48 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: db: %v", err)
	}
	defer pool.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runCleanup(ctx, cfg, pool)
	}()

	if brokers := cfg.SecurityKafkaBrokersList(); len(brokers) > 0 && cfg.LokiURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shipSecurityEvents(ctx, cfg, brokers)
		}()
	} else {
		log.Println("worker: KAFKA_BROKERS or LOKI_URL not set, security event shipping disabled")
	}

	wg.Wait()
	log.Println("worker: stopped")
}

// runCleanup periodically removes expired revocations, dead sessions, expired
// magic links, and inert lockout records.
func runCleanup(ctx context.Context, cfg *config.Config, pool *sql.DB) {
	revocations := revocation.NewPostgresStore(pool, cfg.Retention())
	sessions := sessionrepo.NewPostgresRepository(pool)
	links := magiclinkrepo.NewPostgresRepository(pool)
	lockouts := lockout.NewPostgresRepository(pool)

	interval := cfg.CleanupEvery()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("worker: cleanup every %s", interval)
	for {
		cleanupOnce(ctx, cfg, revocations, sessions, links, lockouts)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func cleanupOnce(
	ctx context.Context,
	cfg *config.Config,
	revocations revocation.Store,
	sessions sessionrepo.Repository,
	links magiclinkrepo.Repository,
	lockouts lockout.Repository,
) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.StoreCallTimeout())
	defer cancel()

	if n, err := revocations.CleanupExpired(callCtx); err != nil {
		log.Printf("worker: revocation cleanup: %v", err)
	} else if n > 0 {
		log.Printf("worker: removed %d expired revocations", n)
	}
	if n, err := sessions.DeleteExpired(callCtx, cfg.Retention()); err != nil {
		log.Printf("worker: session cleanup: %v", err)
	} else if n > 0 {
		log.Printf("worker: removed %d dead sessions", n)
	}
	if n, err := links.DeleteExpired(callCtx, cfg.Retention()); err != nil {
		log.Printf("worker: magic link cleanup: %v", err)
	} else if n > 0 {
		log.Printf("worker: removed %d expired magic links", n)
	}
	if n, err := lockouts.DeleteInert(callCtx, inertLockoutAge); err != nil {
		log.Printf("worker: lockout cleanup: %v", err)
	} else if n > 0 {
		log.Printf("worker: removed %d inert lockout records", n)
	}
}

// shipSecurityEvents consumes security events from Kafka and pushes them to Loki.
func shipSecurityEvents(ctx context.Context, cfg *config.Config, brokers []string) {
	topic := cfg.SecurityKafkaTopic
	groupID := cfg.KafkaGroupID

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	log.Printf("worker: consuming from %s (group %s), pushing to %s", topic, groupID, cfg.LokiURL)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := loki.PushEventJSON(pushCtx, cfg.LokiURL, msg.Value); err != nil {
			log.Printf("worker: loki push failed: %v", err)
		}
		pushCancel()
	}
}
