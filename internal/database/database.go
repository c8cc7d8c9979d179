package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"viral-music-bot/internal/config"
	"viral-music-bot/internal/logger"
	"viral-music-bot/internal/models"
)

// Connect opens the configured database and migrates the schema.
func Connect(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "postgres":
		return ConnectPostgres(cfg, log)
	default:
		return ConnectSQLite(cfg.DBPath, log)
	}
}

// ConnectSQLite opens the SQLite file at path, creating its directory if
// needed. The pool is limited to one connection so writers are serialized.
func ConnectSQLite(path string, log *logrus.Logger) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	log.WithField("path", path).Info("connected to SQLite")

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ConnectPostgres(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.WithFields(logrus.Fields{
		"host": cfg.DBHost,
		"db":   cfg.DBName,
	}).Info("connected to PostgreSQL")

	if err := migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	err := db.AutoMigrate(&models.User{}, &models.Package{}, &models.Group{}, &models.Promotion{}, &models.Referral{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
