package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// Repository manages persistence for dispute cases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, disputeCase *models.DisputeCase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error)
	ListOpen(ctx context.Context, limit int) ([]models.DisputeCase, error)
	Resolve(ctx context.Context, id uuid.UUID, note string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispute case repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, disputeCase *models.DisputeCase) error {
	return r.db.WithContext(ctx).Create(disputeCase).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error) {
	var disputeCase models.DisputeCase
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&disputeCase).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &disputeCase, nil
}

func (r *repository) ListOpen(ctx context.Context, limit int) ([]models.DisputeCase, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var cases []models.DisputeCase
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.DisputeStatusOpen).
		Order("created_at ASC").
		Limit(limit).
		Find(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

// Resolve closes an open case with an audit note. A false return means the
// case was already resolved.
func (r *repository) Resolve(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.DisputeCase{}).
		Where("id = ? AND status = ?", id, enums.DisputeStatusOpen).
		Updates(map[string]any{
			"status":          enums.DisputeStatusResolved,
			"resolution_note": note,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
