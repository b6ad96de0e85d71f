package payouts

import (
	"context"
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
	sessions  map[uuid.UUID][]models.DisbursementSession
	createErr error
	initErr   error
}

func (f *fakeDisbursements) Create(ctx context.Context, input disbursements.CreateInput) (*models.DisbursementSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, input)
	session := models.DisbursementSession{
		ID:             uuid.New(),
		OwnerID:        input.OwnerID,
		AmountCents:    input.AmountCents,
		Purpose:        input.Purpose,
		LinkedEntityID: input.LinkedEntityID,
		Status:         enums.DisbursementStatusPending,
	}
	if f.sessions == nil {
		f.sessions = map[uuid.UUID][]models.DisbursementSession{}
	}
	f.sessions[input.LinkedEntityID] = append(f.sessions[input.LinkedEntityID], session)
	return &session, nil
}

func (f *fakeDisbursements) Initiate(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	f.initiated = append(f.initiated, sessionID)
	for linked, sessions := range f.sessions {
		for i := range sessions {
			if sessions[i].ID == sessionID {
				f.sessions[linked][i].Status = enums.DisbursementStatusInitiated
				session := f.sessions[linked][i]
				return &session, nil
			}
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
}

func (f *fakeDisbursements) FindByLinkedEntity(ctx context.Context, linkedEntityID uuid.UUID) ([]models.DisbursementSession, error) {
	return f.sessions[linkedEntityID], nil
}

type fakeRepo struct {
	requests map[uuid.UUID]*models.PayoutRequest
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{requests: map[uuid.UUID]*models.PayoutRequest{}}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, request *models.PayoutRequest) error {
	request.ID = uuid.New()
	copied := *request
	f.requests[request.ID] = &copied
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	copied := *request
	return &copied, nil
}

func (f *fakeRepo) ListByTrainer(ctx context.Context, trainerID uuid.UUID, limit int) ([]models.PayoutRequest, error) {
	var out []models.PayoutRequest
	for _, request := range f.requests {
		if request.TrainerID == trainerID {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByStatus(ctx context.Context, status enums.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	var out []models.PayoutRequest
	for _, request := range f.requests {
		if request.Status == status {
			out = append(out, *request)
		}
	}
	return out, nil
}

func (f *fakeRepo) Approve(ctx context.Context, id uuid.UUID, commissionPercent int, netAmountCents int64, reviewedBy uuid.UUID) (bool, error) {
	request, ok := f.requests[id]
	if !ok || request.Status != enums.PayoutStatusPending {
		return false, nil
	}
	request.Status = enums.PayoutStatusApproved
	request.CommissionPercent = &commissionPercent
	request.NetAmountCents = &netAmountCents
	request.ReviewedBy = &reviewedBy
	return true, nil
}

func (f *fakeRepo) Reject(ctx context.Context, id uuid.UUID, reviewedBy uuid.UUID, reason string) (bool, error) {
	request, ok := f.requests[id]
	if !ok || request.Status != enums.PayoutStatusPending {
		return false, nil
	}
	request.Status = enums.PayoutStatusRejected
	request.RejectionReason = &reason
	request.ReviewedBy = &reviewedBy
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

func (f *fixture) request(t *testing.T, amountCents int64) *models.PayoutRequest {
	t.Helper()
	request, err := f.svc.Request(context.Background(), RequestInput{
		TrainerID:   uuid.New(),
		PayoutPhone: "0712345678",
		AmountCents: amountCents,
	})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	return request
}

func TestNetAfterCommission(t *testing.T) {
	tests := []struct {
		gross int64
		pct   int
		want  int64
	}{
		{1000, 5, 900}, // 950 cents is not payable, floor to the unit boundary
		{100000, 5, 95000},
		{1000, 0, 1000},
		{1000, 100, 0},
		{250, 50, 100},     // 125 cents
		{333, 10, 200},     // 299.7 cents
		{99900, 33, 66900}, // 66933 cents
	}
	for _, tc := range tests {
		got, err := netAfterCommission(tc.gross, tc.pct)
		if err != nil {
			t.Fatalf("gross=%d pct=%d: %v", tc.gross, tc.pct, err)
		}
		if got != tc.want {
			t.Fatalf("gross=%d pct=%d: expected %d, got %d", tc.gross, tc.pct, tc.want, got)
		}
	}

	if _, err := netAfterCommission(1000, 101); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for pct > 100, got %v", err)
	}
	if _, err := netAfterCommission(1000, -1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative pct, got %v", err)
	}
}

func TestRequestCreatesPending(t *testing.T) {
	f := newFixture(t)
	request := f.request(t, 100000)

	if request.Status != enums.PayoutStatusPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}
	if request.PayoutPhone != "254712345678" {
		t.Fatalf("expected normalized phone, got %s", request.PayoutPhone)
	}
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Request(ctx, RequestInput{TrainerID: uuid.New(), PayoutPhone: "bad", AmountCents: 1000}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for phone, got %v", err)
	}
	if _, err := f.svc.Request(ctx, RequestInput{TrainerID: uuid.New(), PayoutPhone: "0712345678", AmountCents: 0}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for amount, got %v", err)
	}
}

func TestApproveOpensDisbursementForNet(t *testing.T) {
	f := newFixture(t)
	request := f.request(t, 100000)
	reviewer := uuid.New()

	approved, err := f.svc.Approve(context.Background(), request.ID, reviewer, 5)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != enums.PayoutStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.NetAmountCents == nil || *approved.NetAmountCents != 95000 {
		t.Fatalf("expected net 95000, got %v", approved.NetAmountCents)
	}

	if len(f.disb.created) != 1 {
		t.Fatalf("expected one disbursement, got %d", len(f.disb.created))
	}
	created := f.disb.created[0]
	if created.AmountCents != 95000 || created.Purpose != enums.DisbursementPurposePayout {
		t.Fatalf("unexpected disbursement input: %+v", created)
	}
	if created.LinkedEntityID != request.ID {
		t.Fatal("disbursement must link back to the request")
	}
	if len(f.disb.initiated) != 1 {
		t.Fatalf("expected the session initiated, got %d", len(f.disb.initiated))
	}
}

func TestApproveNonPendingRequest(t *testing.T) {
	f := newFixture(t)
	request := f.request(t, 100000)
	reviewer := uuid.New()

	if _, err := f.svc.Approve(context.Background(), request.ID, reviewer, 5); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := f.svc.Approve(context.Background(), request.ID, reviewer, 5); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(f.disb.created) != 1 {
		t.Fatal("second approve must not open another disbursement")
	}
}

func TestApproveSurvivesInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	request := f.request(t, 100000)
	f.disb.createErr = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "broke")

	_, err := f.svc.Approve(context.Background(), request.ID, uuid.New(), 5)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	// Approval is recorded; the resume job retries the session later.
	stored := f.repo.requests[request.ID]
	if stored.Status != enums.PayoutStatusApproved {
		t.Fatalf("expected approved despite session failure, got %s", stored.Status)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	f := newFixture(t)
	request := f.request(t, 100000)
	reviewer := uuid.New()

	rejected, err := f.svc.Reject(context.Background(), request.ID, reviewer, "ineligible")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != enums.PayoutStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if len(f.disb.created) != 0 {
		t.Fatal("rejection must not open a disbursement")
	}

	if _, err := f.svc.Approve(context.Background(), request.ID, reviewer, 5); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict after rejection, got %v", err)
	}
}

func TestResumeApprovedBackfillsMissingSession(t *testing.T) {
	f := newFixture(t)
	request := f.request(t, 100000)
	f.disb.createErr = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "broke")
	if _, err := f.svc.Approve(context.Background(), request.ID, uuid.New(), 5); err == nil {
		t.Fatal("expected approve to fail session creation")
	}

	f.disb.createErr = nil
	resumed, err := f.svc.ResumeApproved(context.Background())
	if err != nil {
		t.Fatalf("ResumeApproved: %v", err)
	}
	if resumed != 1 {
		t.Fatalf("expected one resumed request, got %d", resumed)
	}
	if len(f.disb.created) != 1 {
		t.Fatalf("expected one backfilled disbursement, got %d", len(f.disb.created))
	}
	if f.disb.created[0].AmountCents != 95000 {
		t.Fatalf("backfill must use the approved net amount, got %d", f.disb.created[0].AmountCents)
	}

	// A second pass finds the in-flight session and does nothing.
	resumed, err = f.svc.ResumeApproved(context.Background())
	if err != nil {
		t.Fatalf("second ResumeApproved: %v", err)
	}
	if resumed != 0 || len(f.disb.created) != 1 {
		t.Fatalf("second pass must be a no-op, resumed=%d created=%d", resumed, len(f.disb.created))
	}
}
