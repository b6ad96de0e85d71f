package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// DisbursementSession tracks one outbound payment (B2C). Held reports whether
// the owner wallet still has funds reserved for this session.
type DisbursementSession struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID                 `gorm:"column:owner_id;type:uuid;not null;index"`
	RecipientPhone string                    `gorm:"column:recipient_phone;not null"`
	AmountCents    int64                     `gorm:"column:amount_cents;not null"`
	Purpose        enums.DisbursementPurpose `gorm:"column:purpose;type:disbursement_purpose_enum;not null"`
	LinkedEntityID uuid.UUID                 `gorm:"column:linked_entity_id;type:uuid;not null;index"`
	ProviderRef    string                    `gorm:"column:provider_ref;uniqueIndex"`
	Status         enums.DisbursementStatus  `gorm:"column:status;type:disbursement_status_enum;not null;default:'pending'"`
	TransactionID  *uuid.UUID                `gorm:"column:transaction_id;type:uuid"`
	FailureReason  *string                   `gorm:"column:failure_reason"`
	Held           bool                      `gorm:"column:held;not null;default:false"`
	PollAttempts   int                       `gorm:"column:poll_attempts;not null;default:0"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
