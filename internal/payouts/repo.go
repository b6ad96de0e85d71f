package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// Repository manages persistence for payout requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PayoutRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	ListByTrainer(ctx context.Context, trainerID uuid.UUID, limit int) ([]models.PayoutRequest, error)
	ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.PayoutRequest, error)
	Approve(ctx context.Context, id uuid.UUID, commissionPercent int, netAmountCents int64, reviewedBy uuid.UUID) (bool, error)
	Reject(ctx context.Context, id uuid.UUID, reviewedBy uuid.UUID, reason string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var request models.PayoutRequest
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&request).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

func (r *repository) ListByTrainer(ctx context.Context, trainerID uuid.UUID, limit int) ([]models.PayoutRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var requests []models.PayoutRequest
	if err := r.db.WithContext(ctx).
		Where("trainer_id = ?", trainerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	var requests []models.PayoutRequest
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Approve fixes the commission terms. Only a pending request can be approved;
// a false return means it was already reviewed.
func (r *repository) Approve(ctx context.Context, id uuid.UUID, commissionPercent int, netAmountCents int64, reviewedBy uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":             enums.PayoutStatusApproved,
			"commission_percent": commissionPercent,
			"net_amount_cents":   netAmountCents,
			"reviewed_by":        reviewedBy,
			"reviewed_at":        now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) Reject(ctx context.Context, id uuid.UUID, reviewedBy uuid.UUID, reason string) (bool, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":           enums.PayoutStatusRejected,
			"rejection_reason": reason,
			"reviewed_by":      reviewedBy,
			"reviewed_at":      now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
