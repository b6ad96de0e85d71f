package disbursements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wambuinjohi/trainerconnect/internal/ledger"
	"github.com/wambuinjohi/trainerconnect/pkg/config"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
	"github.com/wambuinjohi/trainerconnect/pkg/mpesa"
	"github.com/wambuinjohi/trainerconnect/pkg/phone"
)

type provider interface {
	B2CPayment(ctx context.Context, input mpesa.B2CInput) (*mpesa.B2CResult, error)
}

type ledgerService interface {
	Apply(ctx context.Context, input ledger.ApplyInput) (*models.WalletTransaction, bool, error)
	HoldTx(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, amountCents int64) error
	ReleaseHold(ctx context.Context, input ledger.ReleaseHoldInput) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages outbound payments. Funds are held on the paying wallet
// before the provider is asked to move money, and every terminal transition
// either consumes or releases that hold exactly once.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.DisbursementSession, error)
	Initiate(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error)
	ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.DisbursementSession, error)
	AdminFail(ctx context.Context, sessionID uuid.UUID, reason string) (*models.DisbursementSession, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error)
	FindByProviderRef(ctx context.Context, providerRef string) (*models.DisbursementSession, error)
	FindByLinkedEntity(ctx context.Context, linkedEntityID uuid.UUID) ([]models.DisbursementSession, error)
	ListStuck(ctx context.Context, before time.Time, limit int) ([]models.DisbursementSession, error)
	RecordAttempt(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error)
}

// CreateInput reserves funds and opens an outbound payment session.
type CreateInput struct {
	OwnerID        uuid.UUID
	RecipientPhone string
	AmountCents    int64
	Purpose        enums.DisbursementPurpose
	LinkedEntityID uuid.UUID
}

type service struct {
	tx          txRunner
	repo        Repository
	provider    provider
	ledger      ledgerService
	payments    config.PaymentsConfig
	maxAttempts int
	logger      *logger.Logger
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Tx          txRunner
	Repo        Repository
	Provider    provider
	Ledger      ledgerService
	Payments    config.PaymentsConfig
	MaxAttempts int
	Logger      *logger.Logger
}

// NewService wires a disbursement session manager.
func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("disbursements repository required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.MaxAttempts <= 0 {
		params.MaxAttempts = 12
	}
	return &service{
		tx:          params.Tx,
		repo:        params.Repo,
		provider:    params.Provider,
		ledger:      params.Ledger,
		payments:    params.Payments,
		maxAttempts: params.MaxAttempts,
		logger:      params.Logger,
	}, nil
}

// Create validates the request and reserves funds on the owner's wallet. The
// hold and the session row commit in one transaction, so an insufficient
// balance leaves no trace and a crash cannot strand reserved funds without a
// session to settle them.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.DisbursementSession, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if input.LinkedEntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "linked entity id is required")
	}
	if !input.Purpose.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid disbursement purpose %q", input.Purpose))
	}
	msisdn, err := phone.NormalizeMSISDN(input.RecipientPhone)
	if err != nil {
		return nil, err
	}
	if input.AmountCents < s.payments.MinDisbursementCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount below minimum of %d cents", s.payments.MinDisbursementCents))
	}
	// The provider only moves whole currency units; a fractional amount would
	// debit the ledger more than the recipient receives.
	if input.AmountCents%100 != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a whole number of currency units")
	}

	session := &models.DisbursementSession{
		OwnerID:        input.OwnerID,
		RecipientPhone: msisdn,
		AmountCents:    input.AmountCents,
		Purpose:        input.Purpose,
		LinkedEntityID: input.LinkedEntityID,
		Status:         enums.DisbursementStatusPending,
		Held:           true,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.HoldTx(ctx, tx, input.OwnerID, input.AmountCents); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithSessionID(ctx, session.ID.String()), "disbursement created")
	return session, nil
}

// Initiate hands a pending session to the provider. An accepted request moves
// to initiated with the provider reference; an outright rejection fails the
// session and releases the hold. A provider outage keeps the session pending
// so a later attempt can retry.
func (s *service) Initiate(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error) {
	session, err := s.mustFind(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != enums.DisbursementStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("session is %s, only pending sessions can be initiated", session.Status))
	}

	result, err := s.provider.B2CPayment(ctx, mpesa.B2CInput{
		Phone:       session.RecipientPhone,
		AmountCents: session.AmountCents,
		Remarks:     string(session.Purpose),
		Occasion:    session.LinkedEntityID.String(),
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeProviderRejected) {
			reason := err.Error()
			return s.fail(ctx, session, reason)
		}
		return nil, err
	}

	moved, err := s.repo.MarkInitiated(ctx, session.ID, result.ConversationID)
	if err != nil {
		return nil, err
	}
	if !moved {
		return s.mustFind(ctx, session.ID)
	}
	session.Status = enums.DisbursementStatusInitiated
	session.ProviderRef = result.ConversationID
	s.logger.Info(s.logger.WithSessionID(ctx, session.ID.String()), "disbursement initiated")
	return session, nil
}

// ApplyOutcome settles an initiated session from a provider result. Completion
// debits the wallet through the ledger, consuming the hold; failure releases
// the hold and records the reason. Both paths are idempotent.
func (s *service) ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.DisbursementSession, error) {
	session, err := s.mustFind(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}
	if session.Status != enums.DisbursementStatusInitiated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("session is %s, outcome requires an initiated session", session.Status))
	}

	switch mpesa.ClassifyResultCode(resultCode) {
	case mpesa.OutcomePending:
		return session, nil
	case mpesa.OutcomeSuccess:
		return s.complete(ctx, session)
	default:
		reason := resultDescription
		if reason == "" {
			reason = fmt.Sprintf("provider result code %s", resultCode)
		}
		return s.fail(ctx, session, reason)
	}
}

func (s *service) complete(ctx context.Context, session *models.DisbursementSession) (*models.DisbursementSession, error) {
	entry, _, err := s.ledger.Apply(ctx, ledger.ApplyInput{
		OwnerID:           session.OwnerID,
		Type:              session.Purpose.TransactionType(),
		AmountCents:       session.AmountCents,
		ExternalReference: "mpesa:" + session.ProviderRef,
		Description:       fmt.Sprintf("disbursement %s (%s)", session.ID, session.Purpose),
	})
	if err != nil {
		return nil, err
	}

	settled, err := s.repo.Settle(ctx, session.ID, SettleUpdate{
		Status:        enums.DisbursementStatusCompleted,
		TransactionID: &entry.ID,
	})
	if err != nil {
		return nil, err
	}
	if !settled {
		return s.mustFind(ctx, session.ID)
	}
	session.Status = enums.DisbursementStatusCompleted
	session.TransactionID = &entry.ID
	session.Held = false
	s.logger.Info(s.logger.WithSessionID(ctx, session.ID.String()), "disbursement completed")
	return session, nil
}

func (s *service) fail(ctx context.Context, session *models.DisbursementSession, reason string) (*models.DisbursementSession, error) {
	if session.Held {
		if err := s.ledger.ReleaseHold(ctx, ledger.ReleaseHoldInput{
			OwnerID:     session.OwnerID,
			AmountCents: session.AmountCents,
			Reference:   "disb:" + session.ID.String(),
			Reason:      reason,
		}); err != nil {
			return nil, err
		}
	}

	settled, err := s.repo.Settle(ctx, session.ID, SettleUpdate{
		Status:        enums.DisbursementStatusFailed,
		FailureReason: &reason,
	})
	if err != nil {
		return nil, err
	}
	if !settled {
		return s.mustFind(ctx, session.ID)
	}
	session.Status = enums.DisbursementStatusFailed
	session.FailureReason = &reason
	session.Held = false
	s.logger.Warn(s.logger.WithSessionID(ctx, session.ID.String()), "disbursement failed: "+reason)
	return session, nil
}

// AdminFail lets an operator settle a stuck session as failed, releasing the
// hold through the same path the provider outcome would use.
func (s *service) AdminFail(ctx context.Context, sessionID uuid.UUID, reason string) (*models.DisbursementSession, error) {
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	session, err := s.mustFind(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("session already settled as %s", session.Status))
	}
	return s.fail(ctx, session, "operator: "+reason)
}

// RecordAttempt bumps the poll counter and fails the session once the budget
// is exhausted without a provider outcome.
func (s *service) RecordAttempt(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error) {
	session, err := s.mustFind(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}
	if err := s.repo.IncrementPollAttempts(ctx, session.ID); err != nil {
		return nil, err
	}
	session.PollAttempts++
	if session.PollAttempts < s.maxAttempts {
		return session, nil
	}
	return s.fail(ctx, session, "no provider outcome within attempt budget")
}

func (s *service) Get(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error) {
	return s.mustFind(ctx, sessionID)
}

func (s *service) FindByProviderRef(ctx context.Context, providerRef string) (*models.DisbursementSession, error) {
	if providerRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider reference is required")
	}
	return s.repo.FindByProviderRef(ctx, providerRef)
}

func (s *service) FindByLinkedEntity(ctx context.Context, linkedEntityID uuid.UUID) ([]models.DisbursementSession, error) {
	if linkedEntityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "linked entity id is required")
	}
	return s.repo.FindByLinkedEntity(ctx, linkedEntityID)
}

func (s *service) ListStuck(ctx context.Context, before time.Time, limit int) ([]models.DisbursementSession, error) {
	return s.repo.ListStuck(ctx, before, limit)
}

func (s *service) mustFind(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "disbursement session not found")
	}
	return session, nil
}
