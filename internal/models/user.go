package models

import (
	"time"
)

type User struct {
	TelegramID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Username            string `gorm:"size:255"`
	FirstName           string `gorm:"size:255"`
	LastName            string `gorm:"size:255"`
	Shares              int64  `gorm:"not null;default:0;check:shares >= 0"`
	Referrals           int64  `gorm:"not null;default:0"`
	DailyBonusClaimedAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
