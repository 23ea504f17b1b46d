// Package database opens the gorm store backing negotiation state. A
// postgres DSN is used when configured; otherwise a local sqlite file keeps
// single-host deployments dependency-free.
package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schedbot-backend/internal/negotiation/domain"
	"schedbot-backend/pkg/config"
)

// NewConnection opens the configured database
func NewConnection(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var db *gorm.DB
	var err error
	if cfg.DatabaseURL != "" {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Println("[Database] Connected to postgres")
	} else {
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		log.Printf("[Database] Using sqlite store at %s", cfg.SQLitePath)
	}
	return db, nil
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Negotiation{},
		&domain.GuestResponse{},
		&domain.ThreadMessage{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
