package disputes

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/internal/disbursements"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type disbursementService interface {
	Create(ctx context.Context, input disbursements.CreateInput) (*models.DisbursementSession, error)
	Initiate(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error)
}

// Service handles the refund slice of a dispute: pushing money back to the
// claimant and resolving the case once the provider confirms delivery.
type Service interface {
	Refund(ctx context.Context, input RefundInput) (*models.DisbursementSession, error)
	OnDisbursementSettled(ctx context.Context, session *models.DisbursementSession) error
	Get(ctx context.Context, caseID uuid.UUID) (*models.DisputeCase, error)
	ListOpen(ctx context.Context, limit int) ([]models.DisputeCase, error)
	Open(ctx context.Context, input OpenInput) (*models.DisputeCase, error)
}

// RefundInput starts a refund disbursement for an open case. Phone and amount
// default to the values recorded on the case.
type RefundInput struct {
	CaseID        uuid.UUID
	ClaimantPhone string
	AmountCents   int64
	Reason        string
}

// OpenInput records a new dispute case against a booking.
type OpenInput struct {
	BookingID     uuid.UUID
	ClaimantID    uuid.UUID
	RespondentID  uuid.UUID
	ClaimantPhone string
	AmountCents   int64
}

type service struct {
	repo          Repository
	disbursements disbursementService
	logger        *logger.Logger
}

// NewService wires the dispute refund workflow.
func NewService(repo Repository, disb disbursementService, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disputes repository required")
	}
	if disb == nil {
		return nil, fmt.Errorf("disbursement service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, disbursements: disb, logger: logg}, nil
}

func (s *service) Open(ctx context.Context, input OpenInput) (*models.DisputeCase, error) {
	if input.BookingID == uuid.Nil || input.ClaimantID == uuid.Nil || input.RespondentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking, claimant, and respondent ids are required")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	disputeCase := &models.DisputeCase{
		BookingID:     input.BookingID,
		ClaimantID:    input.ClaimantID,
		RespondentID:  input.RespondentID,
		ClaimantPhone: input.ClaimantPhone,
		AmountCents:   input.AmountCents,
		Status:        enums.DisputeStatusOpen,
	}
	if err := s.repo.Create(ctx, disputeCase); err != nil {
		return nil, err
	}
	return disputeCase, nil
}

// Refund opens a fresh refund disbursement against the respondent's wallet.
// Earlier failed attempts are never reused; every invocation makes a new
// session so its lifecycle is traceable on its own.
func (s *service) Refund(ctx context.Context, input RefundInput) (*models.DisbursementSession, error) {
	disputeCase, err := s.mustFind(ctx, input.CaseID)
	if err != nil {
		return nil, err
	}
	if disputeCase.Status != enums.DisputeStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "case is already resolved")
	}

	claimantPhone := input.ClaimantPhone
	if claimantPhone == "" {
		claimantPhone = disputeCase.ClaimantPhone
	}
	amount := input.AmountCents
	if amount <= 0 {
		amount = disputeCase.AmountCents
	}
	if amount > disputeCase.AmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund cannot exceed the disputed amount")
	}

	session, err := s.disbursements.Create(ctx, disbursements.CreateInput{
		OwnerID:        disputeCase.RespondentID,
		RecipientPhone: claimantPhone,
		AmountCents:    amount,
		Purpose:        enums.DisbursementPurposeRefund,
		LinkedEntityID: disputeCase.ID,
	})
	if err != nil {
		return nil, err
	}

	initiated, err := s.disbursements.Initiate(ctx, session.ID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) {
			// The pending session survives; the resume path retries it.
			s.logger.Warn(ctx, "refund initiation deferred, provider unavailable")
			return session, nil
		}
		return nil, err
	}
	s.logger.Info(s.logger.WithSessionID(ctx, initiated.ID.String()), "dispute refund initiated")
	return initiated, nil
}

// OnDisbursementSettled reacts to a settled refund session. Completion
// resolves the case with an audit note; failure leaves it open so an operator
// can retry with a fresh session.
func (s *service) OnDisbursementSettled(ctx context.Context, session *models.DisbursementSession) error {
	if session == nil || session.Purpose != enums.DisbursementPurposeRefund {
		return nil
	}

	switch session.Status {
	case enums.DisbursementStatusCompleted:
		txID := "unknown"
		if session.TransactionID != nil {
			txID = session.TransactionID.String()
		}
		note := fmt.Sprintf("refunded %d cents to %s (transaction %s)",
			session.AmountCents, session.RecipientPhone, txID)
		resolved, err := s.repo.Resolve(ctx, session.LinkedEntityID, note)
		if err != nil {
			return err
		}
		if resolved {
			s.logger.Info(s.logger.WithSessionID(ctx, session.ID.String()), "dispute resolved by refund")
		}
		return nil
	case enums.DisbursementStatusFailed:
		reason := "unknown"
		if session.FailureReason != nil {
			reason = *session.FailureReason
		}
		s.logger.Warn(s.logger.WithSessionID(ctx, session.ID.String()),
			"dispute refund failed, case stays open: "+reason)
		return nil
	default:
		return nil
	}
}

func (s *service) Get(ctx context.Context, caseID uuid.UUID) (*models.DisputeCase, error) {
	return s.mustFind(ctx, caseID)
}

func (s *service) ListOpen(ctx context.Context, limit int) ([]models.DisputeCase, error) {
	return s.repo.ListOpen(ctx, limit)
}

func (s *service) mustFind(ctx context.Context, caseID uuid.UUID) (*models.DisputeCase, error) {
	if caseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "case id is required")
	}
	disputeCase, err := s.repo.FindByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if disputeCase == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute case not found")
	}
	return disputeCase, nil
}
