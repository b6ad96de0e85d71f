package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// CollectionSession tracks one inbound payment attempt (STK push). Only the
// reconciliation paths mutate it after initiation; terminal statuses are final.
type CollectionSession struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID           uuid.UUID               `gorm:"column:owner_id;type:uuid;not null;index"`
	PayerPhone        string                  `gorm:"column:payer_phone;not null"`
	AmountCents       int64                   `gorm:"column:amount_cents;not null"`
	Purpose           enums.CollectionPurpose `gorm:"column:purpose;type:collection_purpose_enum;not null"`
	Reference         string                  `gorm:"column:reference"`
	CheckoutID        string                  `gorm:"column:checkout_id;uniqueIndex"`
	Status            enums.CollectionStatus  `gorm:"column:status;type:collection_status_enum;not null;default:'initiated'"`
	ResultCode        *string                 `gorm:"column:result_code"`
	ResultDescription *string                 `gorm:"column:result_description"`
	PollAttempts      int                     `gorm:"column:poll_attempts;not null;default:0"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
