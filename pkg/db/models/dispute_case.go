package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// DisputeCase is referenced, not owned: the refund workflow reads the claim and
// flips status to resolved on a settled refund. The wider dispute lifecycle
// lives elsewhere in the product.
type DisputeCase struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BookingID      uuid.UUID           `gorm:"column:booking_id;type:uuid;not null;index"`
	ClaimantID     uuid.UUID           `gorm:"column:claimant_id;type:uuid;not null"`
	RespondentID   uuid.UUID           `gorm:"column:respondent_id;type:uuid;not null"`
	ClaimantPhone  string              `gorm:"column:claimant_phone"`
	AmountCents    int64               `gorm:"column:amount_cents;not null"`
	Status         enums.DisputeStatus `gorm:"column:status;type:dispute_status_enum;not null;default:'open'"`
	ResolutionNote *string             `gorm:"column:resolution_note"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
