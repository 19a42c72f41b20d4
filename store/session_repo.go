package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/deskagent/types"
)

// Valid context modes, as stored on a session.
const (
	ContextModeProject     = "project"
	ContextModeACLMentions = "acl_mentions"
	ContextModeGlobal      = "global"
)

// ValidContextMode reports whether mode is one of the three retrieval
// strategies.
func ValidContextMode(mode string) bool {
	switch mode {
	case ContextModeProject, ContextModeACLMentions, ContextModeGlobal:
		return true
	}
	return false
}

// SessionRepo provides session lifecycle and history operations.
type SessionRepo struct {
	db     *gorm.DB
	cache  *HistoryCache
	logger *zap.Logger
}

// NewSessionRepo creates a SessionRepo.
func NewSessionRepo(db *gorm.DB, logger *zap.Logger) *SessionRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRepo{db: db, logger: logger}
}

// WithHistoryCache attaches a Redis write-through cache of recent history.
// The database stays the source of truth; cache failures are logged and
// never fail the operation.
func (r *SessionRepo) WithHistoryCache(cache *HistoryCache) *SessionRepo {
	r.cache = cache
	return r
}

// decodeHistory populates s.History from the stored JSON. Malformed
// history is treated as empty rather than failing the read.
func (r *SessionRepo) decodeHistory(s *Session) {
	s.History = nil
	if s.HistoryJSON == "" {
		return
	}
	if err := json.Unmarshal([]byte(s.HistoryJSON), &s.History); err != nil {
		r.logger.Error("malformed session history, treating as empty",
			zap.Uint("session_id", s.ID),
			zap.Error(err),
		)
		s.History = nil
	}
}

// loadHistory populates s.History for the hot read path: the cache is
// consulted first, a miss falls back to the stored JSON and re-warms the
// cache. Cache failures never fail the read.
func (r *SessionRepo) loadHistory(ctx context.Context, s *Session) {
	if r.cache == nil {
		r.decodeHistory(s)
		return
	}
	cached, err := r.cache.Recent(ctx, s.ID, 0)
	if err != nil {
		r.logger.Warn("history cache read failed",
			zap.Uint("session_id", s.ID), zap.Error(err))
	}
	if err == nil && len(cached) > 0 {
		s.History = cached
		return
	}
	r.decodeHistory(s)
	if len(s.History) > 0 {
		if err := r.cache.Replace(ctx, s.ID, s.History); err != nil {
			r.logger.Warn("history cache warm failed",
				zap.Uint("session_id", s.ID), zap.Error(err))
		}
	}
}

// GetActiveForUser returns the user's active session, or ErrNotFound.
func (r *SessionRepo) GetActiveForUser(ctx context.Context, userID uint64) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, SessionActive).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.loadHistory(ctx, &s)
	return &s, nil
}

// GetByID returns the session with the given id.
func (r *SessionRepo) GetByID(ctx context.Context, id uint) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).First(&s, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.decodeHistory(&s)
	return &s, nil
}

// CloseAllActiveForUser transitions every active session of the user to
// closed with an end timestamp.
func (r *SessionRepo) CloseAllActiveForUser(ctx context.Context, userID uint64) error {
	if r.cache != nil {
		var ids []uint
		if err := r.db.WithContext(ctx).
			Model(&Session{}).
			Where("user_id = ? AND status = ?", userID, SessionActive).
			Pluck("id", &ids).Error; err == nil {
			for _, id := range ids {
				if err := r.cache.Clear(ctx, id); err != nil {
					r.logger.Warn("history cache clear failed",
						zap.Uint("session_id", id), zap.Error(err))
				}
			}
		}
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&Session{}).
		Where("user_id = ? AND status = ?", userID, SessionActive).
		Updates(map[string]any{"status": SessionClosed, "ended_at": now}).Error
}

// StartNew closes all of the user's active sessions and opens a fresh one.
// When projectID is set and the project has an active mode, the new session
// is bound to that mode's id (resolved lazily and tolerant of dangling
// references).
func (r *SessionRepo) StartNew(ctx context.Context, userID uint64, profile string, projectID *uint) (*Session, error) {
	if err := r.CloseAllActiveForUser(ctx, userID); err != nil {
		return nil, err
	}

	var modeID *uint
	if projectID != nil {
		var p Project
		if err := r.db.WithContext(ctx).First(&p, *projectID).Error; err == nil && p.ActiveMode != "" {
			var m Mode
			if err := r.db.WithContext(ctx).
				Where("project_id = ? AND name = ?", p.ID, p.ActiveMode).
				First(&m).Error; err == nil {
				modeID = &m.ID
			}
		}
	}

	s := &Session{
		UserID:        userID,
		ProjectID:     projectID,
		ModeID:        modeID,
		Status:        SessionActive,
		ContextMode:   ContextModeProject,
		ActiveProfile: profile,
		HistoryJSON:   "[]",
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	r.logger.Info("session started",
		zap.Uint("session_id", s.ID),
		zap.Uint64("user_id", userID),
		zap.String("profile", profile),
	)
	return s, nil
}

// GetContextMode returns the context mode of the user's active session, or
// the default "project" when there is none.
func (r *SessionRepo) GetContextMode(ctx context.Context, userID uint64) (string, error) {
	s, err := r.GetActiveForUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ContextModeProject, nil
	}
	if err != nil {
		return "", err
	}
	if s.ContextMode == "" {
		return ContextModeProject, nil
	}
	return s.ContextMode, nil
}

// SetContextMode sets the context mode on the user's active session.
// Returns ErrNoActiveSession when there is none.
func (r *SessionRepo) SetContextMode(ctx context.Context, userID uint64, mode string) error {
	if !ValidContextMode(mode) {
		return ErrInvalidContextMode
	}
	s, err := r.GetActiveForUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return ErrNoActiveSession
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", s.ID).
		Update("context_mode", mode).Error
}

// AppendHistory appends one message to the session's history. History is
// append-only; existing entries are never rewritten.
func (r *SessionRepo) AppendHistory(ctx context.Context, sessionID uint, msg types.Message) error {
	s, err := r.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	history := append(s.History, msg)
	raw, err := json.Marshal(history)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Model(&Session{}).
		Where("id = ?", sessionID).
		Update("message_history", string(raw)).Error; err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Append(ctx, sessionID, msg); err != nil {
			r.logger.Warn("history cache append failed",
				zap.Uint("session_id", sessionID), zap.Error(err))
			// Drop the key so the next read re-warms from the store
			// instead of serving a truncated history.
			if err := r.cache.Clear(ctx, sessionID); err != nil {
				r.logger.Warn("history cache clear failed",
					zap.Uint("session_id", sessionID), zap.Error(err))
			}
		}
	}
	return nil
}

// ListByUser returns the user's sessions, most recent first.
func (r *SessionRepo) ListByUser(ctx context.Context, userID uint64) ([]Session, error) {
	var sessions []Session
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		r.decodeHistory(&sessions[i])
	}
	return sessions, nil
}

// DeleteClosedOlderThan removes closed sessions whose end timestamp is
// older than the cutoff. Scheduling is the caller's concern.
func (r *SessionRepo) DeleteClosedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND ended_at < ?", SessionClosed, cutoff).
		Delete(&Session{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.logger.Info("retention: old sessions deleted", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
