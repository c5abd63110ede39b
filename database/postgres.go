package database

import (
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rental-messenger/config"
	"rental-messenger/model"
)

func PostgresConnect(cfg config.Service, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("Connection opened to Postgres", "host", cfg.PostgresHost, "db", cfg.PostgresDB)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("Postgres database migrated")
	return db, nil
}

// Migrate creates or updates the chat tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Message{},
		&model.ChatSession{},
		&model.Profile{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
