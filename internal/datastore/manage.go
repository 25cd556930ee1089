package datastore

import (
	"fmt"

	"gorm.io/gorm"
)

// performMigrations runs schema creation and the additive manual migrations.
// It is idempotent and must complete before any scheduling begins.
func performMigrations(db *gorm.DB, debug bool) error {
	if err := db.AutoMigrate(
		&Aircraft{},
		&ScheduledFlight{},
		&VerificationLog{},
		&CuratedEntry{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	if err := addColumnIfMissing(db, &Aircraft{}, "discovery_priority", debug); err != nil {
		return err
	}
	if err := addColumnIfMissing(db, &Aircraft{}, "last_error", debug); err != nil {
		return err
	}
	if err := addColumnIfMissing(db, &VerificationLog{}, "flight_number", debug); err != nil {
		return err
	}

	if debug {
		logger.Debug("Database migrations complete")
	}
	return nil
}

// addColumnIfMissing performs an additive migration: columns introduced
// after the initial schema are added only when absent, never destroying
// existing data. AutoMigrate covers this for current builds; the explicit
// check keeps databases created by pre-AutoMigrate builds upgradable.
func addColumnIfMissing(db *gorm.DB, model any, column string, debug bool) error {
	migrator := db.Migrator()
	if migrator.HasColumn(model, column) {
		return nil
	}
	if debug {
		logger.Debug("Adding missing column", "column", column)
	}
	if err := migrator.AddColumn(model, column); err != nil {
		return fmt.Errorf("failed to add column %s: %w", column, err)
	}
	return nil
}
