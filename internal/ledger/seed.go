package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/clause"

	"viral-music-bot/internal/models"
)

var DefaultPackages = []models.Package{
	{Name: "BASIC", Price: 20, Shares: 200},
	{Name: "PRO", Price: 50, Shares: 500},
	{Name: "VIP", Price: 100, Shares: 1000},
	{Name: "PREMIUM", Price: 1000, Shares: 20000},
}

var DefaultGroups = []models.Group{
	{GroupID: "-1001000000001", Title: "Afrobeats Daily", Username: "afrobeatsdaily", MemberCount: 15400, IsActive: true},
	{GroupID: "-1001000000002", Title: "Gengetone Hub", Username: "gengetonehub", MemberCount: 9800, IsActive: true},
	{GroupID: "-1001000000003", Title: "Amapiano Lovers", Username: "amapianolovers", MemberCount: 12100, IsActive: true},
	{GroupID: "-1001000000004", Title: "Bongo Flava Fans", Username: "bongoflavafans", MemberCount: 7600, IsActive: true},
	{GroupID: "-1001000000005", Title: "Gospel Vibes KE", Username: "gospelvibeske", MemberCount: 5300, IsActive: true},
}

// Seed inserts the catalog and target groups. Rows that already exist, by
// package name or group id, are left untouched, so Seed can run on every start.
func (s *Store) Seed(ctx context.Context, packages []models.Package, groups []models.Group) error {
	if len(packages) > 0 {
		rows := make([]models.Package, len(packages))
		copy(rows, packages)
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("seed packages: %w", err)
		}
	}

	if len(groups) > 0 {
		rows := make([]models.Group, len(groups))
		copy(rows, groups)
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "group_id"}},
			DoNothing: true,
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("seed groups: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"packages": len(packages),
		"groups":   len(groups),
	}).Info("seed data loaded")
	return nil
}
