package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/odyssey-erp/odyssey-starter/internal/app"
	"github.com/odyssey-erp/odyssey-starter/internal/auth"
	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
	"github.com/odyssey-erp/odyssey-starter/internal/shared"
	"github.com/odyssey-erp/odyssey-starter/internal/users"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	provider := users.NewProvider(db.NewSessions(database), auth.NewPasswordHasher(cfg.BcryptCost), nil)

	fmt.Println("→ Seeding users...")
	if err := seedUsers(ctx, provider); err != nil {
		log.Fatalf("seed users: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func seedUsers(ctx context.Context, provider *users.Provider) error {
	seeds := []users.CreateUserRequest{
		{Username: "admin", Email: "admin@starter.local", FullName: "Admin", Password: "admin123"},
		{Username: "alice", Email: "alice@starter.local", FullName: "Alice Example", Password: "alice123"},
		{Username: "bob", Email: "bob@starter.local", FullName: "Bob Example", Password: "bob12345"},
	}

	for _, req := range seeds {
		err := provider.Scope(ctx, func(ctx context.Context, svc *users.Service) error {
			_, err := svc.RegisterUser(ctx, req)
			return err
		})
		switch {
		case errors.Is(err, shared.ErrDuplicateEmail), errors.Is(err, shared.ErrDuplicateUsername):
			fmt.Printf("  skip %s (exists)\n", req.Email)
		case err != nil:
			return fmt.Errorf("%s: %w", req.Email, err)
		default:
			fmt.Printf("  created %s\n", req.Email)
		}
	}
	return nil
}
