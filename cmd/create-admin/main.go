package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"notika/backend/internal/auth"
	"notika/backend/internal/config"
	"notika/backend/internal/domain"
	"notika/backend/internal/storage/postgres"
)

// create-admin 在数据库中创建管理员账号，已存在时把管理员角色追加到该账号
func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: create-admin <email> <password> <username> [name] [surname]")
		os.Exit(1)
	}

	email := domain.NormalizeEmail(os.Args[1])
	password := os.Args[2]
	username := strings.TrimSpace(os.Args[3])
	name, surname := "", ""
	if len(os.Args) >= 5 {
		name = os.Args[4]
	}
	if len(os.Args) >= 6 {
		surname = os.Args[5]
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.Type == "" {
		fmt.Println("NOTIKA_DATABASE_TYPE is not set; the memory store cannot hold an admin across restarts")
		os.Exit(1)
	}

	if !domain.ValidateEmail(email) {
		fmt.Println("Invalid email format")
		os.Exit(1)
	}
	if err := domain.ValidateUsername(username); err != nil {
		fmt.Printf("Invalid username: %v\n", err)
		os.Exit(1)
	}
	if err := domain.ValidatePassword(password); err != nil {
		fmt.Printf("Invalid password: %v\n", err)
		os.Exit(1)
	}

	store, err := postgres.Open(cfg.Database, nil)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if existing, err := store.GetUserByEmail(ctx, email); err == nil {
		if !existing.Roles.Has(domain.RoleAdmin) {
			existing.Roles = append(existing.Roles, domain.RoleAdmin)
			existing.UpdatedAt = time.Now()
			if err := store.UpdateUser(ctx, existing); err != nil {
				fmt.Printf("Failed to promote user: %v\n", err)
				os.Exit(1)
			}
		}
		fmt.Printf("✓ Existing user %s now has the Admin role\n", existing.Email)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         name,
		Surname:      surname,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        domain.Roles{domain.RoleAdmin},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		fmt.Printf("Failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Admin user created successfully!\n")
	fmt.Printf("  ID:       %s\n", user.ID)
	fmt.Printf("  Email:    %s\n", user.Email)
	fmt.Printf("  Username: %s\n", user.Username)
}
