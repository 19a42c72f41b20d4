package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultAccessScope is the scope tag applied to edges granted without an
// explicit scope.
const DefaultAccessScope = "read"

// AccessRepo manages the directed cross-project access graph. Edges are
// one-hop: reachability is never computed transitively.
type AccessRepo struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewAccessRepo creates an AccessRepo.
func NewAccessRepo(db *gorm.DB, logger *zap.Logger) *AccessRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessRepo{db: db, logger: logger}
}

// Grant creates the edge owner -> allowed, or idempotently updates its
// scope when the pair already exists. Self-loops are rejected.
func (r *AccessRepo) Grant(ctx context.Context, ownerProjectID, allowedProjectID uint, scope string) (*ProjectAccess, error) {
	if ownerProjectID == allowedProjectID {
		return nil, ErrSelfGrant
	}
	if scope == "" {
		scope = DefaultAccessScope
	}

	var existing ProjectAccess
	err := r.db.WithContext(ctx).
		Where("owner_project_id = ? AND allowed_project_id = ?", ownerProjectID, allowedProjectID).
		First(&existing).Error
	if err == nil {
		if existing.Scope != scope {
			existing.Scope = scope
			if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	edge := &ProjectAccess{
		OwnerProjectID:   ownerProjectID,
		AllowedProjectID: allowedProjectID,
		Scope:            scope,
	}
	if err := r.db.WithContext(ctx).Create(edge).Error; err != nil {
		return nil, err
	}
	r.logger.Info("access granted",
		zap.Uint("owner_project_id", ownerProjectID),
		zap.Uint("allowed_project_id", allowedProjectID),
		zap.String("scope", scope),
	)
	return edge, nil
}

// Revoke hard-deletes the edge owner -> allowed. Returns false when no
// such edge existed.
func (r *AccessRepo) Revoke(ctx context.Context, ownerProjectID, allowedProjectID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("owner_project_id = ? AND allowed_project_id = ?", ownerProjectID, allowedProjectID).
		Delete(&ProjectAccess{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		r.logger.Info("access revoked",
			zap.Uint("owner_project_id", ownerProjectID),
			zap.Uint("allowed_project_id", allowedProjectID),
		)
	}
	return res.RowsAffected > 0, nil
}

// ListGrantedBy returns the edges granted by the owner project, most
// recently granted first.
func (r *AccessRepo) ListGrantedBy(ctx context.Context, ownerProjectID uint) ([]ProjectAccess, error) {
	var edges []ProjectAccess
	err := r.db.WithContext(ctx).
		Where("owner_project_id = ?", ownerProjectID).
		Order("created_at DESC").
		Find(&edges).Error
	return edges, err
}

// ListAllowedTargets returns the allowed project ids for edges owned by the
// project, most recently granted first.
func (r *AccessRepo) ListAllowedTargets(ctx context.Context, ownerProjectID uint) ([]uint, error) {
	edges, err := r.ListGrantedBy(ctx, ownerProjectID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.AllowedProjectID)
	}
	return ids, nil
}

// IsAllowed reports whether the exact directed edge owner -> target exists.
func (r *AccessRepo) IsAllowed(ctx context.Context, ownerProjectID, targetProjectID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ProjectAccess{}).
		Where("owner_project_id = ? AND allowed_project_id = ?", ownerProjectID, targetProjectID).
		Count(&count).Error
	return count > 0, err
}
