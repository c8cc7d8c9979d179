package database

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"viral-music-bot/internal/logger"
	"viral-music-bot/internal/models"
)

func TestConnectSQLiteCreatesDirAndSchema(t *testing.T) {
	log := logger.New("error")
	log.SetOutput(io.Discard)

	path := filepath.Join(t.TempDir(), "nested", "bot.db")
	db, err := ConnectSQLite(path, log)
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	defer sqlDB.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	for _, table := range []any{&models.User{}, &models.Package{}, &models.Group{}, &models.Promotion{}, &models.Referral{}} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table for %T not migrated", table)
		}
	}
}

func TestSharesCheckConstraint(t *testing.T) {
	log := logger.New("error")
	log.SetOutput(io.Discard)

	db, err := ConnectSQLite(filepath.Join(t.TempDir(), "bot.db"), log)
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := db.Create(&models.User{TelegramID: 1, Shares: 0}).Error; err != nil {
		t.Fatal(err)
	}
	err = db.Model(&models.User{}).Where("telegram_id = ?", 1).Update("shares", -1).Error
	if err == nil {
		t.Fatal("negative balance accepted by schema")
	}
}
