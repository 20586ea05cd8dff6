package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"session-manager/internal/model"
)

// SessionRepository handles persistence for exported account sessions.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	session.IsActive = true
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's sessions, newest first.
func (r *SessionRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// ListAll returns every stored session grouped by owner, newest first within each owner.
func (r *SessionRepository) ListAll(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).
		Order("owner_id ASC, created_at DESC, id DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list all sessions: %w", err)
	}
	return sessions, nil
}

// DeleteByOwner removes all sessions of the owner and reports how many were deleted.
func (r *SessionRepository) DeleteByOwner(ctx context.Context, ownerID int64) (int64, error) {
	result := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&model.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeactivateAllForOwner flips is_active off for the owner's records. Idempotent.
func (r *SessionRepository) DeactivateAllForOwner(ctx context.Context, ownerID int64) error {
	if err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate sessions: %w", err)
	}
	return nil
}

// DeactivateByID flips is_active off for a single record.
func (r *SessionRepository) DeactivateByID(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("id = ?", id).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate session %d: %w", id, err)
	}
	return nil
}

// ListActiveForDisconnect returns the owner's currently active sessions only.
func (r *SessionRepository) ListActiveForDisconnect(ctx context.Context, ownerID int64) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("created_at DESC, id DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// ListAllActive returns active sessions across all owners, for the periodic audit.
func (r *SessionRepository) ListAllActive(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("owner_id ASC, id ASC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}
