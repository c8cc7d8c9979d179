package models

import (
	"time"
)

// Referral records that ReferredID joined through ReferrerID's link.
// A user can be referred at most once.
type Referral struct {
	ID         uint  `gorm:"primaryKey"`
	ReferrerID int64 `gorm:"not null;index"`
	ReferredID int64 `gorm:"not null;uniqueIndex"`
	Bonus      int64 `gorm:"not null"`
	CreatedAt  time.Time
}
