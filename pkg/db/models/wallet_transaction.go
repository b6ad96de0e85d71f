package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/pkg/enums"
)

// WalletTransaction is an immutable ledger entry. ExternalReference is the
// idempotency key: at most one row exists per reference. Corrections are new,
// offsetting entries, never updates.
type WalletTransaction struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID           uuid.UUID                   `gorm:"column:owner_id;type:uuid;not null;index"`
	Type              enums.WalletTransactionType `gorm:"column:type;type:wallet_transaction_type_enum;not null"`
	AmountCents       int64                       `gorm:"column:amount_cents;not null"`
	ExternalReference string                      `gorm:"column:external_reference;not null;unique"`
	BalanceAfterCents int64                       `gorm:"column:balance_after_cents;not null"`
	Description       string                      `gorm:"column:description"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
}
