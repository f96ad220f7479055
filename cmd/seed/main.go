// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"docshare/internal/config"
	"docshare/internal/db"
	"docshare/internal/security"
	"docshare/internal/user/domain"
	userrepo "docshare/internal/user/repository"
)

const (
	devUserEmail  = "dev@example.com"
	dev2UserEmail = "friend@example.com"
	devPassword   = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(database)

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Println("seed: dev user already exists, nothing to do")
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	now := time.Now().UTC()
	seedUsers := []*domain.User{
		{
			ID:           uuid.New().String(),
			Name:         "Dev User",
			Email:        devUserEmail,
			PasswordHash: hash,
			NationalID:   "111122223333",
			Phone:        "9000000001",
			Verified:     true,
			Role:         domain.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		{
			ID:           uuid.New().String(),
			Name:         "Dev Friend",
			Email:        dev2UserEmail,
			PasswordHash: hash,
			NationalID:   "444455556666",
			Phone:        "9000000002",
			Verified:     true,
			Role:         domain.RoleUser,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	for _, u := range seedUsers {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("seed: create %s: %v", u.Email, err)
		}
		log.Printf("seed: created %s (password %q)", u.Email, devPassword)
	}
}
