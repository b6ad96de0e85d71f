package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletAccount holds the authoritative balances for one user. The ledger
// maintains BalanceCents == AvailableCents + PendingCents at all times.
type WalletAccount struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID `gorm:"column:owner_id;type:uuid;not null;unique"`
	BalanceCents   int64     `gorm:"column:balance_cents;not null;default:0"`
	AvailableCents int64     `gorm:"column:available_cents;not null;default:0"`
	PendingCents   int64     `gorm:"column:pending_cents;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
