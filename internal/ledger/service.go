package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/pkg/db"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the single write path for wallet balances. Every mutation keeps
// balance == available + pending and is keyed by an external reference so it
// lands at most once.
type Service interface {
	Apply(ctx context.Context, input ApplyInput) (*models.WalletTransaction, bool, error)
	Hold(ctx context.Context, ownerID uuid.UUID, amountCents int64) error
	HoldTx(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, amountCents int64) error
	ReleaseHold(ctx context.Context, input ReleaseHoldInput) error
	GetWallet(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error)
	ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error)
}

// ApplyInput captures one requested ledger mutation. AmountCents is the
// positive magnitude; the entry is stored signed according to the type.
type ApplyInput struct {
	OwnerID           uuid.UUID
	Type              enums.WalletTransactionType
	AmountCents       int64
	ExternalReference string
	Description       string
}

// ReleaseHoldInput reverses a hold. Reference keys the compensating adjustment
// entry so repeated releases are no-ops.
type ReleaseHoldInput struct {
	OwnerID     uuid.UUID
	AmountCents int64
	Reference   string
	Reason      string
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService wires a ledger service with the provided transaction runner and repository.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

// Apply records one wallet transaction. If the external reference was already
// applied the stored entry is returned with applied=false; callers treat that
// as success. Debits consume held funds first, then available funds.
func (s *service) Apply(ctx context.Context, input ApplyInput) (*models.WalletTransaction, bool, error) {
	if input.OwnerID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !input.Type.IsValid() || input.Type == enums.WalletTransactionTypeAdjustment {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.AmountCents <= 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.ExternalReference == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}

	var (
		entry   *models.WalletTransaction
		applied bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindTransactionByReference(ctx, input.ExternalReference)
		if err != nil {
			return err
		}
		if existing != nil {
			entry = existing
			applied = false
			return nil
		}

		account, err := s.loadOrCreateAccount(ctx, repo, input)
		if err != nil {
			return err
		}

		old := balancesOf(account)
		next, signed, err := nextBalances(old, input)
		if err != nil {
			return err
		}

		row := &models.WalletTransaction{
			OwnerID:           input.OwnerID,
			Type:              input.Type,
			AmountCents:       signed,
			ExternalReference: input.ExternalReference,
			BalanceAfterCents: next.Balance,
			Description:       input.Description,
		}
		if err := repo.CreateTransaction(ctx, row); err != nil {
			// A concurrent caller with the same reference won the race.
			if db.IsUniqueViolation(err, "") {
				stored, findErr := repo.FindTransactionByReference(ctx, input.ExternalReference)
				if findErr != nil {
					return findErr
				}
				if stored != nil {
					entry = stored
					applied = false
					return nil
				}
			}
			return err
		}

		swapped, err := repo.CompareAndSwapBalances(ctx, input.OwnerID, old, next)
		if err != nil {
			return err
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeConflict, "wallet changed concurrently, retry")
		}

		entry = row
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, applied, nil
}

func (s *service) loadOrCreateAccount(ctx context.Context, repo Repository, input ApplyInput) (*models.WalletAccount, error) {
	account, err := repo.FindAccountByOwner(ctx, input.OwnerID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	if input.Type.IsDebit() {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet has no funds")
	}
	account = &models.WalletAccount{OwnerID: input.OwnerID}
	if err := repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func nextBalances(old Balances, input ApplyInput) (Balances, int64, error) {
	next := old
	if !input.Type.IsDebit() {
		next.Balance += input.AmountCents
		next.Available += input.AmountCents
		return next, input.AmountCents, nil
	}

	if old.Balance < input.AmountCents {
		return old, 0, pkgerrors.New(pkgerrors.CodeInsufficientFunds,
			fmt.Sprintf("balance %d below requested %d", old.Balance, input.AmountCents))
	}

	// Consume the held portion first; any remainder comes out of available.
	fromPending := input.AmountCents
	if fromPending > old.Pending {
		fromPending = old.Pending
	}
	remainder := input.AmountCents - fromPending
	if remainder > old.Available {
		return old, 0, pkgerrors.New(pkgerrors.CodeInsufficientFunds,
			fmt.Sprintf("available %d below requested %d", old.Available, remainder))
	}
	next.Pending -= fromPending
	next.Available -= remainder
	next.Balance -= input.AmountCents
	return next, -input.AmountCents, nil
}

// Hold reserves funds for an in-flight withdrawal-type session so the same
// balance cannot back two concurrent attempts.
func (s *service) Hold(ctx context.Context, ownerID uuid.UUID, amountCents int64) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.HoldTx(ctx, tx, ownerID, amountCents)
	})
}

// HoldTx is Hold running inside the caller's transaction, so the hold and the
// row that accounts for it commit or roll back together.
func (s *service) HoldTx(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, amountCents int64) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	account, err := repo.FindAccountByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if account == nil || account.AvailableCents < amountCents {
		available := int64(0)
		if account != nil {
			available = account.AvailableCents
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds,
			fmt.Sprintf("available %d below requested %d", available, amountCents))
	}

	old := balancesOf(account)
	next := old
	next.Available -= amountCents
	next.Pending += amountCents

	swapped, err := repo.CompareAndSwapBalances(ctx, ownerID, old, next)
	if err != nil {
		return err
	}
	if !swapped {
		return pkgerrors.New(pkgerrors.CodeConflict, "wallet changed concurrently, retry")
	}
	return nil
}

// ReleaseHold moves reserved funds back to available and records a tagged
// adjustment entry so the audit trail explains the disappearing hold. Repeat
// calls with the same reference are no-ops.
func (s *service) ReleaseHold(ctx context.Context, input ReleaseHoldInput) error {
	if input.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if input.AmountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.Reference == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	reference := "release:" + input.Reference
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.FindTransactionByReference(ctx, reference)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		account, err := repo.FindAccountByOwner(ctx, input.OwnerID)
		if err != nil {
			return err
		}
		if account == nil || account.PendingCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no matching hold to release")
		}

		old := balancesOf(account)
		next := old
		next.Pending -= input.AmountCents
		next.Available += input.AmountCents

		row := &models.WalletTransaction{
			OwnerID:           input.OwnerID,
			Type:              enums.WalletTransactionTypeAdjustment,
			AmountCents:       0,
			ExternalReference: reference,
			BalanceAfterCents: next.Balance,
			Description:       fmt.Sprintf("hold of %d released: %s", input.AmountCents, input.Reason),
		}
		if err := repo.CreateTransaction(ctx, row); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil
			}
			return err
		}

		swapped, err := repo.CompareAndSwapBalances(ctx, input.OwnerID, old, next)
		if err != nil {
			return err
		}
		if !swapped {
			return pkgerrors.New(pkgerrors.CodeConflict, "wallet changed concurrently, retry")
		}
		return nil
	})
}

func (s *service) GetWallet(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	account, err := s.repo.FindAccountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &models.WalletAccount{OwnerID: ownerID}, nil
	}
	return account, nil
}

func (s *service) ListTransactions(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListTransactionsByOwner(ctx, ownerID, limit)
}

func balancesOf(account *models.WalletAccount) Balances {
	return Balances{
		Balance:   account.BalanceCents,
		Available: account.AvailableCents,
		Pending:   account.PendingCents,
	}
}
