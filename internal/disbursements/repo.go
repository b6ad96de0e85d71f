package disbursements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// SettleUpdate carries the terminal fields written when a session settles.
type SettleUpdate struct {
	Status        enums.DisbursementStatus
	TransactionID *uuid.UUID
	FailureReason *string
}

// Repository manages persistence for disbursement sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.DisbursementSession) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DisbursementSession, error)
	FindByProviderRef(ctx context.Context, providerRef string) (*models.DisbursementSession, error)
	FindByLinkedEntity(ctx context.Context, linkedEntityID uuid.UUID) ([]models.DisbursementSession, error)
	ListStuck(ctx context.Context, before time.Time, limit int) ([]models.DisbursementSession, error)
	IncrementPollAttempts(ctx context.Context, id uuid.UUID) error
	MarkInitiated(ctx context.Context, id uuid.UUID, providerRef string) (bool, error)
	Settle(ctx context.Context, id uuid.UUID, update SettleUpdate) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a disbursement session repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.DisbursementSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DisbursementSession, error) {
	var session models.DisbursementSession
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

func (r *repository) FindByProviderRef(ctx context.Context, providerRef string) (*models.DisbursementSession, error) {
	var session models.DisbursementSession
	if err := r.db.WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindByLinkedEntity(ctx context.Context, linkedEntityID uuid.UUID) ([]models.DisbursementSession, error) {
	var sessions []models.DisbursementSession
	if err := r.db.WithContext(ctx).
		Where("linked_entity_id = ?", linkedEntityID).
		Order("created_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListStuck returns sessions awaiting a provider outcome past the cutoff.
func (r *repository) ListStuck(ctx context.Context, before time.Time, limit int) ([]models.DisbursementSession, error) {
	if limit <= 0 {
		limit = 100
	}
	var sessions []models.DisbursementSession
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.DisbursementStatusInitiated, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) IncrementPollAttempts(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DisbursementSession{}).
		Where("id = ?", id).
		UpdateColumn("poll_attempts", gorm.Expr("poll_attempts + 1")).Error
}

// MarkInitiated records the provider reference. Only a pending session can
// move to initiated.
func (r *repository) MarkInitiated(ctx context.Context, id uuid.UUID, providerRef string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DisbursementSession{}).
		Where("id = ? AND status = ?", id, enums.DisbursementStatusPending).
		Updates(map[string]any{
			"status":       enums.DisbursementStatusInitiated,
			"provider_ref": providerRef,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Settle moves a session to a terminal status and clears the hold marker. The
// guard keeps terminal sessions immutable.
func (r *repository) Settle(ctx context.Context, id uuid.UUID, update SettleUpdate) (bool, error) {
	updates := map[string]any{
		"status": update.Status,
		"held":   false,
	}
	if update.TransactionID != nil {
		updates["transaction_id"] = *update.TransactionID
	}
	if update.FailureReason != nil {
		updates["failure_reason"] = *update.FailureReason
	}
	result := r.db.WithContext(ctx).
		Model(&models.DisbursementSession{}).
		Where("id = ? AND status IN ?", id,
			[]enums.DisbursementStatus{enums.DisbursementStatusPending, enums.DisbursementStatusInitiated}).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
