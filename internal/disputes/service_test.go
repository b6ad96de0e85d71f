package disputes

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/internal/disbursements"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type fakeDisbursements struct {
	created   []disbursements.CreateInput
	initiated []uuid.UUID
	createErr error
	initErr   error
	last      *models.DisbursementSession
}

func (f *fakeDisbursements) Create(ctx context.Context, input disbursements.CreateInput) (*models.DisbursementSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	session := &models.DisbursementSession{
		ID:             uuid.New(),
		OwnerID:        input.OwnerID,
		RecipientPhone: input.RecipientPhone,
		AmountCents:    input.AmountCents,
		Purpose:        input.Purpose,
		LinkedEntityID: input.LinkedEntityID,
		Status:         enums.DisbursementStatusPending,
	}
	f.last = session
	return session, nil
}

func (f *fakeDisbursements) Initiate(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.initiated = append(f.initiated, sessionID)
	f.last.Status = enums.DisbursementStatusInitiated
	return f.last, nil
}

type fakeRepo struct {
	cases map[uuid.UUID]*models.DisputeCase
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{cases: map[uuid.UUID]*models.DisputeCase{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, disputeCase *models.DisputeCase) error {
	disputeCase.ID = uuid.New()
	copied := *disputeCase
	f.cases[disputeCase.ID] = &copied
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error) {
	disputeCase, ok := f.cases[id]
	if !ok {
		return nil, nil
	}
	copied := *disputeCase
	return &copied, nil
}

func (f *fakeRepo) ListOpen(ctx context.Context, limit int) ([]models.DisputeCase, error) {
	var out []models.DisputeCase
	for _, disputeCase := range f.cases {
		if disputeCase.Status == enums.DisputeStatusOpen {
			out = append(out, *disputeCase)
		}
	}
	return out, nil
}

func (f *fakeRepo) Resolve(ctx context.Context, id uuid.UUID, note string) (bool, error) {
	disputeCase, ok := f.cases[id]
	if !ok || disputeCase.Status != enums.DisputeStatusOpen {
		return false, nil
	}
	disputeCase.Status = enums.DisputeStatusResolved
	disputeCase.ResolutionNote = &note
	return true, nil
}

type fixture struct {
	svc  Service
	repo *fakeRepo
	disb *fakeDisbursements
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newFakeRepo()
	disb := &fakeDisbursements{}
	svc, err := NewService(repo, disb, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, repo: repo, disb: disb}
}

func (f *fixture) openCase(t *testing.T) *models.DisputeCase {
	t.Helper()
	disputeCase, err := f.svc.Open(context.Background(), OpenInput{
		BookingID:     uuid.New(),
		ClaimantID:    uuid.New(),
		RespondentID:  uuid.New(),
		ClaimantPhone: "254712345678",
		AmountCents:   25000,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return disputeCase
}

func TestRefundOpensDisbursementAgainstRespondent(t *testing.T) {
	f := newFixture(t)
	disputeCase := f.openCase(t)

	session, err := f.svc.Refund(context.Background(), RefundInput{
		CaseID: disputeCase.ID,
		Reason: "trainer no-show",
	})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if session.Status != enums.DisbursementStatusInitiated {
		t.Fatalf("expected initiated, got %s", session.Status)
	}

	created := f.disb.created[0]
	if created.OwnerID != disputeCase.RespondentID {
		t.Fatal("refund must debit the respondent's wallet")
	}
	if created.Purpose != enums.DisbursementPurposeRefund {
		t.Fatalf("expected refund purpose, got %s", created.Purpose)
	}
	if created.AmountCents != 25000 || created.RecipientPhone != "254712345678" {
		t.Fatalf("refund must default to case values, got %+v", created)
	}
	if created.LinkedEntityID != disputeCase.ID {
		t.Fatal("session must link back to the case")
	}
}

func TestRefundRejectsResolvedCase(t *testing.T) {
	f := newFixture(t)
	disputeCase := f.openCase(t)
	f.repo.cases[disputeCase.ID].Status = enums.DisputeStatusResolved

	_, err := f.svc.Refund(context.Background(), RefundInput{CaseID: disputeCase.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.disb.created) != 0 {
		t.Fatal("resolved case must not open a disbursement")
	}
}

func TestRefundRejectsOverRefund(t *testing.T) {
	f := newFixture(t)
	disputeCase := f.openCase(t)

	_, err := f.svc.Refund(context.Background(), RefundInput{
		CaseID:      disputeCase.ID,
		AmountCents: 25001,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRetryAfterFailureMakesFreshSession(t *testing.T) {
	f := newFixture(t)
	disputeCase := f.openCase(t)

	first, err := f.svc.Refund(context.Background(), RefundInput{CaseID: disputeCase.ID})
	if err != nil {
		t.Fatalf("first Refund: %v", err)
	}

	// The first attempt fails out of band; the case stays open.
	reason := "recipient unreachable"
	first.Status = enums.DisbursementStatusFailed
	first.FailureReason = &reason
	if err := f.svc.OnDisbursementSettled(context.Background(), first); err != nil {
		t.Fatalf("OnDisbursementSettled: %v", err)
	}
	if f.repo.cases[disputeCase.ID].Status != enums.DisputeStatusOpen {
		t.Fatal("failed refund must leave the case open")
	}

	second, err := f.svc.Refund(context.Background(), RefundInput{CaseID: disputeCase.ID})
	if err != nil {
		t.Fatalf("second Refund: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("retry must create a fresh session, not reuse the failed one")
	}
	if len(f.disb.created) != 2 {
		t.Fatalf("expected two sessions, got %d", len(f.disb.created))
	}
}

func TestCompletedRefundResolvesCase(t *testing.T) {
	f := newFixture(t)
	disputeCase := f.openCase(t)

	session, err := f.svc.Refund(context.Background(), RefundInput{CaseID: disputeCase.ID})
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}

	txID := uuid.New()
	session.Status = enums.DisbursementStatusCompleted
	session.TransactionID = &txID
	if err := f.svc.OnDisbursementSettled(context.Background(), session); err != nil {
		t.Fatalf("OnDisbursementSettled: %v", err)
	}

	stored := f.repo.cases[disputeCase.ID]
	if stored.Status != enums.DisputeStatusResolved {
		t.Fatalf("expected resolved, got %s", stored.Status)
	}
	if stored.ResolutionNote == nil || !strings.Contains(*stored.ResolutionNote, txID.String()) {
		t.Fatalf("resolution note must reference the transaction, got %v", stored.ResolutionNote)
	}

	// Redelivery of the settled event is harmless.
	if err := f.svc.OnDisbursementSettled(context.Background(), session); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
}

func TestSettledHookIgnoresPayoutSessions(t *testing.T) {
	f := newFixture(t)
	disputeCase := f.openCase(t)

	session := &models.DisbursementSession{
		ID:             uuid.New(),
		Purpose:        enums.DisbursementPurposePayout,
		LinkedEntityID: disputeCase.ID,
		Status:         enums.DisbursementStatusCompleted,
	}
	if err := f.svc.OnDisbursementSettled(context.Background(), session); err != nil {
		t.Fatalf("OnDisbursementSettled: %v", err)
	}
	if f.repo.cases[disputeCase.ID].Status != enums.DisputeStatusOpen {
		t.Fatal("payout sessions must not touch dispute cases")
	}
}
