// seed provisions the bootstrap admin account for local development and
// first-run installs. Idempotent: skips the insert if the admin email already
// exists.
package main

import (
	"context"
	"log"
	"time"

	"complaintrack/server/internal/config"
	"complaintrack/server/internal/db"
	identitydomain "complaintrack/server/internal/identity/domain"
	identityrepo "complaintrack/server/internal/identity/repository"
	"complaintrack/server/internal/security"
)

const (
	adminEmail    = "admin@complaintrack.com"
	adminPassword = "admin123"
	adminPhone    = "+1234567890"
	adminUserID   = 1
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := identityrepo.NewPostgresRepository(conn)

	existing, err := users.GetByEmailOrPhone(ctx, adminEmail)
	if err != nil {
		log.Fatalf("seed: lookup admin: %v", err)
	}
	if existing != nil {
		log.Printf("seed: admin %s already exists, nothing to do", adminEmail)
		return
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(adminPassword)
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}

	admin := &identitydomain.User{
		UserID:       adminUserID,
		FullName:     "System Admin",
		Email:        adminEmail,
		Phone:        adminPhone,
		PasswordHash: hash,
		Role:         identitydomain.RoleAdmin,
		CreatedAt:    time.Now().UTC(),
	}
	if err := users.Create(ctx, admin); err != nil {
		log.Fatalf("seed: create admin: %v", err)
	}
	log.Printf("seed: admin created (email: %s, password: %s); change the password after first login", adminEmail, adminPassword)
}
