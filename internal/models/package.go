package models

type Package struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:64;uniqueIndex;not null"`
	Price  int64  `gorm:"not null;check:price > 0"`
	Shares int64  `gorm:"not null;check:shares > 0"`
}
