package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the database schema.
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	return db.AutoMigrate(
		&License{},
		&AdminUser{},
	)
}
