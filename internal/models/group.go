package models

import (
	"time"
)

// Group is a promotion target. Delivery is simulated, so only the member
// count is used, as a reach estimate.
type Group struct {
	GroupID     string    `gorm:"primaryKey;size:64"`
	Title       string    `gorm:"size:255"`
	Username    string    `gorm:"size:255"`
	MemberCount int64     `gorm:"not null;default:0"`
	IsActive    bool      `gorm:"not null;index"`
	AddedAt     time.Time `gorm:"autoCreateTime"`
}
