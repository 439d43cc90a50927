// Package db holds the gorm-backed repositories for credentials, the audit
// chain and the revocation status list.
package db

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errDBUnavailable = errors.New("database unavailable")

func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// AutoMigrate creates the tables this service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&CredentialModel{},
		&AuditEntryModel{},
		&StatusListModel{},
	)
}
