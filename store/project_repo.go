package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectRepo provides CRUD and lookup for projects.
type ProjectRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewProjectRepo creates a ProjectRepo.
func NewProjectRepo(db *gorm.DB, logger *zap.Logger) *ProjectRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectRepo{db: db, logger: logger}
}

// GetByID returns the project with the given id.
func (r *ProjectRepo) GetByID(ctx context.Context, id uint) (*Project, error) {
	var p Project
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByName returns the user's project with the given exact name.
func (r *ProjectRepo) GetByName(ctx context.Context, userID uint64, name string) (*Project, error) {
	var p Project
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ?", userID, name).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUser returns the user's projects, most recently created first.
func (r *ProjectRepo) ListByUser(ctx context.Context, userID uint64) ([]Project, error) {
	var projects []Project
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).Error
	return projects, err
}

// Create creates a project, enforcing name uniqueness per owner.
func (r *ProjectRepo) Create(ctx context.Context, p *Project) error {
	if _, err := r.GetByName(ctx, p.UserID, p.Name); err == nil {
		return ErrDuplicateName
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return err
	}
	r.logger.Info("project created",
		zap.Uint("project_id", p.ID),
		zap.Uint64("user_id", p.UserID),
		zap.String("name", p.Name),
	)
	return nil
}

// Rename renames the user's project, enforcing uniqueness of the new name.
func (r *ProjectRepo) Rename(ctx context.Context, userID uint64, oldName, newName string) (*Project, error) {
	p, err := r.GetByName(ctx, userID, oldName)
	if err != nil {
		return nil, err
	}
	if _, err := r.GetByName(ctx, userID, newName); err == nil {
		return nil, ErrDuplicateName
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	p.Name = newName
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Delete deletes the user's project by name with an explicit ordered
// cascade: access edges (both directions), modes, sessions, then the
// project row itself, all within one transaction so no partial state is
// committed.
func (r *ProjectRepo) Delete(ctx context.Context, userID uint64, name string) error {
	p, err := r.GetByName(ctx, userID, name)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_project_id = ? OR allowed_project_id = ?", p.ID, p.ID).
			Delete(&ProjectAccess{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", p.ID).Delete(&Mode{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", p.ID).Delete(&Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Project{}, p.ID).Error
	})
	if err != nil {
		return err
	}
	r.logger.Info("project deleted",
		zap.Uint("project_id", p.ID),
		zap.Uint64("user_id", userID),
	)
	return nil
}

// SetActiveMode sets the project's active mode by name, or clears it when
// modeName is empty. The mode must exist within the project.
func (r *ProjectRepo) SetActiveMode(ctx context.Context, projectID uint, modeName string) (*Project, error) {
	p, err := r.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if modeName != "" {
		var m Mode
		err := r.db.WithContext(ctx).
			Where("project_id = ? AND name = ?", projectID, modeName).
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}
	p.ActiveMode = modeName
	if err := r.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}
