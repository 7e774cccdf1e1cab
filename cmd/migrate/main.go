// Command migrate brings the database schema up or down using the SQL files
// embedded in the server binary. Invoke as: go run ./cmd/migrate [-direction down]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"maritime-onboarding/backend/internal/config"
	"maritime-onboarding/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "migration direction, up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Nothing to apply.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
