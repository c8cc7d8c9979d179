package models

import (
	"time"
)

type Promotion struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    int64  `gorm:"not null;index"`
	Content   string `gorm:"type:text;not null"`
	SentTo    int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
}
