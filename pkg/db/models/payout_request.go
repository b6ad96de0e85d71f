package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// PayoutRequest is a trainer's ask to withdraw earnings. Commission and net
// amount are fixed at approval time; the record is immutable once reviewed.
type PayoutRequest struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TrainerID         uuid.UUID          `gorm:"column:trainer_id;type:uuid;not null;index"`
	PayoutPhone       string             `gorm:"column:payout_phone;not null"`
	AmountCents       int64              `gorm:"column:amount_cents;not null"`
	Status            enums.PayoutStatus `gorm:"column:status;type:payout_status_enum;not null;default:'pending'"`
	CommissionPercent *int               `gorm:"column:commission_percent"`
	NetAmountCents    *int64             `gorm:"column:net_amount_cents"`
	ReviewedBy        *uuid.UUID         `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt        *time.Time         `gorm:"column:reviewed_at"`
	RejectionReason   *string            `gorm:"column:rejection_reason"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
