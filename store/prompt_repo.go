package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PromptRepo manages personalized fallback prompts per (user, profile).
type PromptRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPromptRepo creates a PromptRepo.
func NewPromptRepo(db *gorm.DB, logger *zap.Logger) *PromptRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptRepo{db: db, logger: logger}
}

// Save creates or updates the prompt for (userID, profile).
func (r *PromptRepo) Save(ctx context.Context, userID uint64, profile, promptText string) error {
	var existing PersonalizedPrompt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND profile = ?", userID, profile).
		First(&existing).Error
	if err == nil {
		existing.PromptText = promptText
		return r.db.WithContext(ctx).Save(&existing).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(&PersonalizedPrompt{
		UserID:     userID,
		Profile:    profile,
		PromptText: promptText,
	}).Error
}

// Get returns the prompt text for (userID, profile), or "" with ErrNotFound.
func (r *PromptRepo) Get(ctx context.Context, userID uint64, profile string) (string, error) {
	var p PersonalizedPrompt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND profile = ?", userID, profile).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return p.PromptText, nil
}
