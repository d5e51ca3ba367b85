package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-relay/config"
	"github.com/marcelsud/webhook-relay/store/postgres"
)

/* migrate applies the embedded PostgreSQL migrations
 * Usage: POSTGRES_URL=postgres://... go run cmd/migrate/main.go
 * Already applied migrations are skipped
 */

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.PostgresURL == "" {
		return errors.New("POSTGRES_URL is required")
	}

	ctx := context.Background()
	st, err := postgres.Connect(ctx, cfg.PostgresURL, 2)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer st.Close()

	applied, err := st.Migrate(ctx)
	for _, name := range applied {
		fmt.Printf("✓ applied %s\n", name)
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if len(applied) == 0 {
		fmt.Println("✓ Database is up to date")
	}
	return nil
}
