// Package ledger owns user share balances and the reference tables around
// them. It is the only package that mutates shares or referral counters.
//
// Every mutation is a single conditional UPDATE or a single transaction, so
// balances stay non-negative when handlers for the same user run concurrently.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"viral-music-bot/internal/models"
)

type Store struct {
	db             *gorm.DB
	log            *logrus.Logger
	now            func() time.Time
	startingShares int64
}

type Option func(*Store)

// WithStartingShares sets the balance given to users on first contact.
func WithStartingShares(n int64) Option {
	return func(s *Store) { s.startingShares = n }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(db *gorm.DB, log *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		db:             db,
		log:            log,
		now:            time.Now,
		startingShares: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profile holds the display fields refreshed on every interaction.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

// BonusResult is the outcome of a daily bonus claim. HoursRemaining is only
// set when Granted is false.
type BonusResult struct {
	Granted        bool
	HoursRemaining int
	Shares         int64
}

// PromotionReceipt describes an accepted promotion.
type PromotionReceipt struct {
	PromotionID uint
	SentTo      int64
	Reach       int64
	SharesLeft  int64
}

// GetOrCreateUser returns the user, inserting it with the starting balance
// on first contact.
func (s *Store) GetOrCreateUser(ctx context.Context, id int64) (*models.User, error) {
	db := s.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.User{
		TelegramID: id,
		Shares:     s.startingShares,
	})
	if res.Error != nil {
		return nil, fmt.Errorf("create user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		s.log.WithFields(logrus.Fields{
			"user_id": id,
			"shares":  s.startingShares,
		}).Info("user created")
	}

	return s.GetUser(ctx, id)
}

// GetUser returns the user without creating it.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

func (s *Store) TouchUserProfile(ctx context.Context, id int64, p Profile) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", id).
		Updates(map[string]interface{}{
			"username":   p.Username,
			"first_name": p.FirstName,
			"last_name":  p.LastName,
		})
	if res.Error != nil {
		return fmt.Errorf("touch profile %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) CreditShares(ctx context.Context, id int64, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", id).
		Update("shares", gorm.Expr("shares + ?", amount))
	if res.Error != nil {
		return fmt.Errorf("credit %d shares to %d: %w", amount, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}

	s.log.WithFields(logrus.Fields{
		"user_id": id,
		"amount":  amount,
	}).Info("shares credited")
	return nil
}

// DebitOneShare spends one share. It reports false, without changing
// anything, when the balance is already zero.
func (s *Store) DebitOneShare(ctx context.Context, id int64) (bool, error) {
	return debitOne(s.db.WithContext(ctx), id)
}

func debitOne(db *gorm.DB, id int64) (bool, error) {
	res := db.Model(&models.User{}).
		Where("telegram_id = ? AND shares > 0", id).
		Update("shares", gorm.Expr("shares - 1"))
	if res.Error != nil {
		return false, fmt.Errorf("debit share from %d: %w", id, res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("telegram_id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("lookup user %d: %w", id, err)
	}
	if count == 0 {
		return false, ErrUserNotFound
	}
	return false, nil
}

// ClaimDailyBonus credits bonus shares if the user never claimed before or
// their last claim is at least cooldownHours old. The boundary is inclusive:
// a claim exactly cooldownHours after the previous one is granted. Elapsed
// time is truncated to whole hours when computing HoursRemaining.
func (s *Store) ClaimDailyBonus(ctx context.Context, id int64, bonus int64, cooldownHours int) (BonusResult, error) {
	if bonus < 0 {
		return BonusResult{}, ErrInvalidAmount
	}

	db := s.db.WithContext(ctx)
	now := s.now().UTC().Truncate(time.Second)
	cutoff := now.Add(-time.Duration(cooldownHours) * time.Hour)

	res := db.Model(&models.User{}).
		Where("telegram_id = ?", id).
		Where("(daily_bonus_claimed_at IS NULL OR daily_bonus_claimed_at <= ?)", cutoff).
		Updates(map[string]interface{}{
			"shares":                 gorm.Expr("shares + ?", bonus),
			"daily_bonus_claimed_at": now,
		})
	if res.Error != nil {
		return BonusResult{}, fmt.Errorf("claim bonus for %d: %w", id, res.Error)
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return BonusResult{}, err
	}

	if res.RowsAffected == 1 {
		s.log.WithFields(logrus.Fields{
			"user_id": id,
			"bonus":   bonus,
		}).Info("daily bonus granted")
		return BonusResult{Granted: true, Shares: user.Shares}, nil
	}

	remaining := cooldownHours
	if user.DailyBonusClaimedAt != nil {
		elapsed := now.Sub(user.DailyBonusClaimedAt.UTC())
		remaining = cooldownHours - int(elapsed.Hours())
	}
	if remaining > cooldownHours {
		remaining = cooldownHours
	}
	if remaining < 1 {
		remaining = 1
	}
	return BonusResult{HoursRemaining: remaining, Shares: user.Shares}, nil
}

// RecordReferral attributes referredID to referrerID. Both users receive
// bonus shares and the referrer's counter goes up by one. A user can only be
// referred once.
func (s *Store) RecordReferral(ctx context.Context, referrerID, referredID int64, bonus int64) error {
	if bonus < 0 {
		return ErrInvalidAmount
	}
	if referrerID == referredID {
		return ErrSelfReferral
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("telegram_id IN ?", []int64{referrerID, referredID}).
			Count(&count).Error; err != nil {
			return fmt.Errorf("lookup referral users: %w", err)
		}
		if count != 2 {
			return ErrUserNotFound
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referred_id"}},
			DoNothing: true,
		}).Create(&models.Referral{
			ReferrerID: referrerID,
			ReferredID: referredID,
			Bonus:      bonus,
		})
		if res.Error != nil {
			return fmt.Errorf("insert referral: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReferred
		}

		if err := tx.Model(&models.User{}).
			Where("telegram_id = ?", referrerID).
			Updates(map[string]interface{}{
				"shares":    gorm.Expr("shares + ?", bonus),
				"referrals": gorm.Expr("referrals + 1"),
			}).Error; err != nil {
			return fmt.Errorf("reward referrer %d: %w", referrerID, err)
		}

		if err := tx.Model(&models.User{}).
			Where("telegram_id = ?", referredID).
			Update("shares", gorm.Expr("shares + ?", bonus)).Error; err != nil {
			return fmt.Errorf("reward referred %d: %w", referredID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"referrer_id": referrerID,
		"referred_id": referredID,
		"bonus":       bonus,
	}).Info("referral recorded")
	return nil
}

// RecordPromotion appends an audit row and returns its id.
func (s *Store) RecordPromotion(ctx context.Context, userID int64, content string, targetCount int64) (uint, error) {
	return recordPromotion(s.db.WithContext(ctx), userID, content, targetCount)
}

func recordPromotion(db *gorm.DB, userID int64, content string, targetCount int64) (uint, error) {
	if targetCount < 0 {
		return 0, ErrInvalidAmount
	}
	promo := models.Promotion{
		UserID:  userID,
		Content: content,
		SentTo:  targetCount,
	}
	if err := db.Create(&promo).Error; err != nil {
		return 0, fmt.Errorf("record promotion for %d: %w", userID, err)
	}
	return promo.ID, nil
}

type targetSummary struct {
	GroupsCount int64
	Reach       int64
}

// Promote spends one share and records a promotion to every active group in
// one transaction. It reports false when the user has no shares left.
func (s *Store) Promote(ctx context.Context, userID int64, content string) (PromotionReceipt, bool, error) {
	var (
		receipt  PromotionReceipt
		accepted bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := debitOne(tx, userID)
		if err != nil || !ok {
			return err
		}

		var targets targetSummary
		if err := tx.Model(&models.Group{}).
			Where("is_active = ?", true).
			Select("COUNT(*) AS groups_count, COALESCE(SUM(member_count), 0) AS reach").
			Scan(&targets).Error; err != nil {
			return fmt.Errorf("count target groups: %w", err)
		}

		id, err := recordPromotion(tx, userID, content, targets.GroupsCount)
		if err != nil {
			return err
		}

		var user models.User
		if err := tx.Select("shares").Where("telegram_id = ?", userID).First(&user).Error; err != nil {
			return fmt.Errorf("reload user %d: %w", userID, err)
		}

		accepted = true
		receipt = PromotionReceipt{
			PromotionID: id,
			SentTo:      targets.GroupsCount,
			Reach:       targets.Reach,
			SharesLeft:  user.Shares,
		}
		return nil
	})
	if err != nil {
		return PromotionReceipt{}, false, err
	}

	if accepted {
		s.log.WithFields(logrus.Fields{
			"user_id":      userID,
			"promotion_id": receipt.PromotionID,
			"sent_to":      receipt.SentTo,
		}).Info("promotion recorded")
	}
	return receipt, accepted, nil
}

// ListPackages returns the catalog, cheapest first.
func (s *Store) ListPackages(ctx context.Context) ([]models.Package, error) {
	var packages []models.Package
	if err := s.db.WithContext(ctx).Order("price ASC, id ASC").Find(&packages).Error; err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	return packages, nil
}

// ListActiveGroups returns the promotion targets, largest first.
func (s *Store) ListActiveGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("member_count DESC, group_id ASC").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (s *Store) AggregateStats(ctx context.Context) (models.Stats, error) {
	db := s.db.WithContext(ctx)
	var st models.Stats

	if err := db.Model(&models.User{}).Count(&st.Users).Error; err != nil {
		return models.Stats{}, fmt.Errorf("count users: %w", err)
	}
	if err := db.Model(&models.Group{}).Where("is_active = ?", true).Count(&st.ActiveGroups).Error; err != nil {
		return models.Stats{}, fmt.Errorf("count groups: %w", err)
	}
	if err := db.Model(&models.Promotion{}).Count(&st.Promotions).Error; err != nil {
		return models.Stats{}, fmt.Errorf("count promotions: %w", err)
	}
	if err := db.Model(&models.User{}).Select("COALESCE(SUM(shares), 0)").Scan(&st.SharesOutstanding).Error; err != nil {
		return models.Stats{}, fmt.Errorf("sum shares: %w", err)
	}
	if err := db.Model(&models.Group{}).
		Where("is_active = ?", true).
		Select("COALESCE(SUM(member_count), 0)").
		Scan(&st.ReachEstimate).Error; err != nil {
		return models.Stats{}, fmt.Errorf("sum reach: %w", err)
	}
	return st, nil
}
