package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
)

const defaultListLimit = 50

// Balances is a snapshot of the three wallet columns used for guarded updates.
type Balances struct {
	Balance   int64
	Available int64
	Pending   int64
}

// Repository manages persistence for wallet accounts and transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error)
	CreateAccount(ctx context.Context, account *models.WalletAccount) error
	CompareAndSwapBalances(ctx context.Context, ownerID uuid.UUID, old, next Balances) (bool, error)
	CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error
	FindTransactionByReference(ctx context.Context, reference string) (*models.WalletTransaction, error)
	ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error) {
	var account models.WalletAccount
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&account).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.WalletAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// CompareAndSwapBalances performs a guarded update: the write only lands when
// all three columns still hold the values the caller read. A false return
// means another writer got there first.
func (r *repository) CompareAndSwapBalances(ctx context.Context, ownerID uuid.UUID, old, next Balances) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WalletAccount{}).
		Where("owner_id = ? AND balance_cents = ? AND available_cents = ? AND pending_cents = ?",
			ownerID, old.Balance, old.Available, old.Pending).
		Updates(map[string]any{
			"balance_cents":   next.Balance,
			"available_cents": next.Available,
			"pending_cents":   next.Pending,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindTransactionByReference(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("external_reference = ?", reference).
		First(&entry).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	var entries []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
