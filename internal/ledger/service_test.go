package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	accounts     map[uuid.UUID]*models.WalletAccount
	transactions map[string]*models.WalletTransaction
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accounts:     map[uuid.UUID]*models.WalletAccount{},
		transactions: map[string]*models.WalletTransaction{},
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.WalletAccount, error) {
	account, ok := f.accounts[ownerID]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (f *fakeRepository) CreateAccount(ctx context.Context, account *models.WalletAccount) error {
	account.ID = uuid.New()
	copied := *account
	f.accounts[account.OwnerID] = &copied
	return nil
}

func (f *fakeRepository) CompareAndSwapBalances(ctx context.Context, ownerID uuid.UUID, old, next Balances) (bool, error) {
	account, ok := f.accounts[ownerID]
	if !ok {
		return false, nil
	}
	if account.BalanceCents != old.Balance || account.AvailableCents != old.Available || account.PendingCents != old.Pending {
		return false, nil
	}
	account.BalanceCents = next.Balance
	account.AvailableCents = next.Available
	account.PendingCents = next.Pending
	return true, nil
}

func (f *fakeRepository) CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	if _, exists := f.transactions[entry.ExternalReference]; exists {
		return gorm.ErrDuplicatedKey
	}
	entry.ID = uuid.New()
	copied := *entry
	f.transactions[entry.ExternalReference] = &copied
	return nil
}

func (f *fakeRepository) FindTransactionByReference(ctx context.Context, reference string) (*models.WalletTransaction, error) {
	entry, ok := f.transactions[reference]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeRepository) ListTransactionsByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	var out []models.WalletTransaction
	for _, entry := range f.transactions {
		if entry.OwnerID == ownerID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (f *fakeRepository) mustInvariant(t *testing.T, ownerID uuid.UUID) {
	t.Helper()
	account := f.accounts[ownerID]
	if account == nil {
		return
	}
	if account.BalanceCents != account.AvailableCents+account.PendingCents {
		t.Fatalf("invariant broken: balance=%d available=%d pending=%d",
			account.BalanceCents, account.AvailableCents, account.PendingCents)
	}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(fakeTxRunner{}, repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestApplyDepositCreatesAccount(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	entry, applied, err := svc.Apply(context.Background(), ApplyInput{
		OwnerID:           owner,
		Type:              enums.WalletTransactionTypeDeposit,
		AmountCents:       15000,
		ExternalReference: "mpesa:ws_CO_1",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !applied {
		t.Fatal("expected a fresh entry")
	}
	if entry.AmountCents != 15000 {
		t.Fatalf("expected signed amount 15000, got %d", entry.AmountCents)
	}
	if entry.BalanceAfterCents != 15000 {
		t.Fatalf("expected balance after 15000, got %d", entry.BalanceAfterCents)
	}

	account := repo.accounts[owner]
	if account.AvailableCents != 15000 || account.PendingCents != 0 {
		t.Fatalf("unexpected balances: %+v", account)
	}
	repo.mustInvariant(t, owner)
}

func TestApplyIsIdempotentPerReference(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	input := ApplyInput{
		OwnerID:           owner,
		Type:              enums.WalletTransactionTypeDeposit,
		AmountCents:       5000,
		ExternalReference: "mpesa:ws_CO_2",
	}
	first, applied, err := svc.Apply(context.Background(), input)
	if err != nil || !applied {
		t.Fatalf("first Apply: applied=%v err=%v", applied, err)
	}

	second, applied, err := svc.Apply(context.Background(), input)
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if applied {
		t.Fatal("second Apply must not re-apply")
	}
	if second.ID != first.ID {
		t.Fatal("expected the stored entry back")
	}
	if repo.accounts[owner].BalanceCents != 5000 {
		t.Fatalf("balance moved twice: %d", repo.accounts[owner].BalanceCents)
	}
	repo.mustInvariant(t, owner)
}

func TestApplyDebitConsumesPendingFirst(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	ctx := context.Background()
	if _, _, err := svc.Apply(ctx, ApplyInput{
		OwnerID: owner, Type: enums.WalletTransactionTypeDeposit,
		AmountCents: 20000, ExternalReference: "seed",
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	if err := svc.Hold(ctx, owner, 8000); err != nil {
		t.Fatalf("Hold: %v", err)
	}

	entry, _, err := svc.Apply(ctx, ApplyInput{
		OwnerID: owner, Type: enums.WalletTransactionTypePayout,
		AmountCents: 8000, ExternalReference: "payout:1",
	})
	if err != nil {
		t.Fatalf("Apply payout: %v", err)
	}
	if entry.AmountCents != -8000 {
		t.Fatalf("expected signed amount -8000, got %d", entry.AmountCents)
	}

	account := repo.accounts[owner]
	if account.PendingCents != 0 {
		t.Fatalf("expected hold consumed, pending=%d", account.PendingCents)
	}
	if account.AvailableCents != 12000 {
		t.Fatalf("expected available 12000, got %d", account.AvailableCents)
	}
	repo.mustInvariant(t, owner)
}

func TestApplyInsufficientFundsLeavesBalancesUntouched(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	ctx := context.Background()
	if _, _, err := svc.Apply(ctx, ApplyInput{
		OwnerID: owner, Type: enums.WalletTransactionTypeDeposit,
		AmountCents: 1000, ExternalReference: "seed",
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	_, _, err := svc.Apply(ctx, ApplyInput{
		OwnerID: owner, Type: enums.WalletTransactionTypeWithdrawal,
		AmountCents: 2000, ExternalReference: "withdraw:1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if repo.accounts[owner].BalanceCents != 1000 {
		t.Fatalf("balance moved on failed debit: %d", repo.accounts[owner].BalanceCents)
	}
	if _, exists := repo.transactions["withdraw:1"]; exists {
		t.Fatal("failed debit must not leave a ledger entry")
	}
}

func TestApplyDebitOnMissingWallet(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	_, _, err := svc.Apply(context.Background(), ApplyInput{
		OwnerID: uuid.New(), Type: enums.WalletTransactionTypeRefund,
		AmountCents: 500, ExternalReference: "refund:1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestApplyRejectsAdjustmentType(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)

	_, _, err := svc.Apply(context.Background(), ApplyInput{
		OwnerID: uuid.New(), Type: enums.WalletTransactionTypeAdjustment,
		AmountCents: 500, ExternalReference: "adj:1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHoldAndReleaseRoundTrip(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	ctx := context.Background()
	if _, _, err := svc.Apply(ctx, ApplyInput{
		OwnerID: owner, Type: enums.WalletTransactionTypeDeposit,
		AmountCents: 10000, ExternalReference: "seed",
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	if err := svc.Hold(ctx, owner, 6000); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	account := repo.accounts[owner]
	if account.AvailableCents != 4000 || account.PendingCents != 6000 {
		t.Fatalf("unexpected balances after hold: %+v", account)
	}

	release := ReleaseHoldInput{OwnerID: owner, AmountCents: 6000, Reference: "payout:9", Reason: "provider failure"}
	if err := svc.ReleaseHold(ctx, release); err != nil {
		t.Fatalf("ReleaseHold: %v", err)
	}
	account = repo.accounts[owner]
	if account.AvailableCents != 10000 || account.PendingCents != 0 {
		t.Fatalf("unexpected balances after release: %+v", account)
	}
	if account.BalanceCents != 10000 {
		t.Fatalf("release must not change total balance, got %d", account.BalanceCents)
	}

	// Releasing the same hold again is a no-op.
	if err := svc.ReleaseHold(ctx, release); err != nil {
		t.Fatalf("repeat ReleaseHold: %v", err)
	}
	if repo.accounts[owner].AvailableCents != 10000 {
		t.Fatal("repeat release moved balances")
	}
	repo.mustInvariant(t, owner)
}

func TestHoldTxRunsInCallerTransaction(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	ctx := context.Background()
	if _, _, err := svc.Apply(ctx, ApplyInput{
		OwnerID: owner, Type: enums.WalletTransactionTypeDeposit,
		AmountCents: 10000, ExternalReference: "seed",
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	// The caller owns the transaction; HoldTx must not open its own.
	if err := svc.HoldTx(ctx, nil, owner, 6000); err != nil {
		t.Fatalf("HoldTx: %v", err)
	}
	account := repo.accounts[owner]
	if account.AvailableCents != 4000 || account.PendingCents != 6000 {
		t.Fatalf("unexpected balances after hold: %+v", account)
	}
	repo.mustInvariant(t, owner)

	if err := svc.HoldTx(ctx, nil, owner, 5000); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestHoldRejectsOverdraw(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	ctx := context.Background()
	if _, _, err := svc.Apply(ctx, ApplyInput{
		OwnerID: owner, Type: enums.WalletTransactionTypeDeposit,
		AmountCents: 3000, ExternalReference: "seed",
	}); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	err := svc.Hold(ctx, owner, 5000)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestGetWalletReturnsZeroedAccountWhenMissing(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	owner := uuid.New()

	account, err := svc.GetWallet(context.Background(), owner)
	if err != nil {
		t.Fatalf("GetWallet: %v", err)
	}
	if account.OwnerID != owner || account.BalanceCents != 0 {
		t.Fatalf("unexpected wallet: %+v", account)
	}
}
