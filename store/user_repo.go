package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserRepo manages end users and their daily token accounting.
type UserRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db *gorm.DB, logger *zap.Logger) *UserRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserRepo{db: db, logger: logger}
}

// GetOrCreate returns the user with the given external id, creating it on
// first contact.
func (r *UserRepo) GetOrCreate(ctx context.Context, id uint64, username string) (*User, error) {
	var u User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u = User{ID: id, Username: username, LastRequestDate: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, err
	}
	r.logger.Info("user created", zap.Uint64("user_id", id))
	return &u, nil
}

// ConsumeTokens adds tokens to the user's daily counter, resetting it on
// day rollover. Returns ErrDailyLimitExceeded when the addition would cross
// dailyLimit; the counter is not advanced in that case. A dailyLimit of 0
// disables accounting.
func (r *UserRepo) ConsumeTokens(ctx context.Context, userID uint64, tokens, dailyLimit int) error {
	if dailyLimit <= 0 {
		return nil
	}
	var u User
	if err := r.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if u.LastRequestDate.UTC().Truncate(24 * time.Hour).Before(today) {
		u.TokensUsedToday = 0
		u.LastRequestDate = today
	}
	if u.TokensUsedToday+tokens > dailyLimit {
		r.logger.Warn("daily token limit exceeded",
			zap.Uint64("user_id", userID),
			zap.Int("used", u.TokensUsedToday),
			zap.Int("limit", dailyLimit),
		)
		return ErrDailyLimitExceeded
	}
	u.TokensUsedToday += tokens
	return r.db.WithContext(ctx).Save(&u).Error
}
