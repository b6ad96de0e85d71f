package collections

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// Repository manages persistence for collection sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.CollectionSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.CollectionSession, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CollectionSession, error)
	ListNonTerminal(ctx context.Context, limit int) ([]models.CollectionSession, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.CollectionSession, error)
	IncrementPollAttempts(ctx context.Context, id uuid.UUID) error
	Transition(ctx context.Context, id uuid.UUID, to enums.CollectionStatus, resultCode, resultDescription *string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a collection session repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.CollectionSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CollectionSession, error) {
	var session models.CollectionSession
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CollectionSession, error) {
	var session models.CollectionSession
	if err := r.db.WithContext(ctx).
		Where("checkout_id = ?", checkoutID).
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListNonTerminal(ctx context.Context, limit int) ([]models.CollectionSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var sessions []models.CollectionSession
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.CollectionStatus{enums.CollectionStatusInitiated, enums.CollectionStatusPending}).
		Order("created_at ASC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.CollectionSession, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var sessions []models.CollectionSession
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) IncrementPollAttempts(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CollectionSession{}).
		Where("id = ?", id).
		UpdateColumn("poll_attempts", gorm.Expr("poll_attempts + 1")).Error
}

// Transition moves a session to a terminal status. The guard keeps terminal
// sessions immutable: a false return means another path already settled it.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, to enums.CollectionStatus, resultCode, resultDescription *string) (bool, error) {
	updates := map[string]any{"status": to}
	if resultCode != nil {
		updates["result_code"] = *resultCode
	}
	if resultDescription != nil {
		updates["result_description"] = *resultDescription
	}
	result := r.db.WithContext(ctx).
		Model(&models.CollectionSession{}).
		Where("id = ? AND status IN ?", id,
			[]enums.CollectionStatus{enums.CollectionStatusInitiated, enums.CollectionStatusPending}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
