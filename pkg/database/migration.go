package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/vidstream/accounts/internal/model"
)

// AutoMigrate runs schema migrations for all models
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return createIndexes(db)
}

// createIndexes adds indexes gorm tags cannot express. Postgres treats NULLs
// as distinct in unique indexes, so the plain unique columns are enough; the
// lower() indexes back the case-insensitive lookups.
func createIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (lower(username)) WHERE deleted_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email)) WHERE deleted_at IS NULL`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
