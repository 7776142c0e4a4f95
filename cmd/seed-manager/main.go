// seed-manager creates or updates a manager account for the municipal
// dashboard. Managers log in through /api/login; citizens come in from
// the mobile side through the document store.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  MANAGER_IDENTIFIER=... MANAGER_PASSWORD=... go run ./cmd/seed-manager
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/models"
	"github.com/lalantsika/lalantsika_backend/utils"
	"gorm.io/gorm"
)

func main() {
	identifier := os.Getenv("MANAGER_IDENTIFIER")
	password := os.Getenv("MANAGER_PASSWORD")
	name := os.Getenv("MANAGER_NAME")
	if identifier == "" || password == "" {
		fmt.Fprintln(os.Stderr, "MANAGER_IDENTIFIER and MANAGER_PASSWORD are required")
		os.Exit(2)
	}
	if name == "" {
		name = identifier
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	managerType, err := models.GetUserTypeByLabel(ctx, models.UserTypeManager)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve manager user type: %v\n", err)
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Where("identifier = ?", identifier).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Identifier: identifier,
			Name:       name,
			Password:   hashedStr,
			UserTypeId: &managerType.ID,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create manager: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created manager: identifier=%q\n", identifier)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("identifier = ?", identifier).Updates(map[string]any{
		"password":     hashedStr,
		"name":         name,
		"user_type_id": managerType.ID,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update manager: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated manager: identifier=%q\n", identifier)
}
