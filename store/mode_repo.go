package store

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// validateToolsConfig accepts an unset config or any valid JSON document.
func validateToolsConfig(raw string) error {
	if raw == "" {
		return nil
	}
	if !json.Valid([]byte(raw)) {
		return ErrInvalidToolsConfig
	}
	return nil
}

// ModeUpdate is a typed patch for Mode. Nil fields are left unchanged, so
// unknown fields cannot be expressed at all. Temperature is re-validated on
// every change; setting it to the empty string clears it.
type ModeUpdate struct {
	SystemPrompt *string
	ToolsConfig  *string
	Temperature  *string
}

// ModeRepo provides CRUD for per-project modes.
type ModeRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewModeRepo creates a ModeRepo.
func NewModeRepo(db *gorm.DB, logger *zap.Logger) *ModeRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModeRepo{db: db, logger: logger}
}

// ListByProject returns the project's modes, oldest first.
func (r *ModeRepo) ListByProject(ctx context.Context, projectID uint) ([]Mode, error) {
	var modes []Mode
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&modes).Error
	return modes, err
}

// GetByName returns the project's mode with the given name.
func (r *ModeRepo) GetByName(ctx context.Context, projectID uint, name string) (*Mode, error) {
	var m Mode
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND name = ?", projectID, name).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID returns the mode with the given id.
func (r *ModeRepo) GetByID(ctx context.Context, id uint) (*Mode, error) {
	var m Mode
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create creates a mode, enforcing name uniqueness within the project,
// validating the tools config and normalizing the temperature.
func (r *ModeRepo) Create(ctx context.Context, m *Mode) error {
	if _, err := r.GetByName(ctx, m.ProjectID, m.Name); err == nil {
		return ErrDuplicateName
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := validateToolsConfig(m.ToolsConfig); err != nil {
		return err
	}
	norm, err := NormalizeTemperature(m.Temperature)
	if err != nil {
		return err
	}
	m.Temperature = norm
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	r.logger.Info("mode created",
		zap.Uint("mode_id", m.ID),
		zap.Uint("project_id", m.ProjectID),
		zap.String("name", m.Name),
	)
	return nil
}

// Update applies a patch to the mode.
func (r *ModeRepo) Update(ctx context.Context, id uint, patch ModeUpdate) (*Mode, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.SystemPrompt != nil {
		m.SystemPrompt = *patch.SystemPrompt
	}
	if patch.ToolsConfig != nil {
		if err := validateToolsConfig(*patch.ToolsConfig); err != nil {
			return nil, err
		}
		m.ToolsConfig = *patch.ToolsConfig
	}
	if patch.Temperature != nil {
		norm, err := NormalizeTemperature(*patch.Temperature)
		if err != nil {
			return nil, err
		}
		m.Temperature = norm
	}
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// Delete deletes the mode. If it is the owning project's active mode, the
// project's active mode name is cleared in the same transaction.
func (r *ModeRepo) Delete(ctx context.Context, id uint) error {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p Project
		if err := tx.First(&p, m.ProjectID).Error; err == nil && p.ActiveMode == m.Name {
			p.ActiveMode = ""
			if err := tx.Save(&p).Error; err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Delete(&Mode{}, id).Error
	})
}
