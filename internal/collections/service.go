package collections

import (
	"context"
	"fmt"

	"github.com/google/uuid"

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
	STKPush(ctx context.Context, input mpesa.STKPushInput) (*mpesa.STKPushResult, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResult, error)
}

type ledgerApplier interface {
	Apply(ctx context.Context, input ledger.ApplyInput) (*models.WalletTransaction, bool, error)
}

// Service manages inbound payment sessions from initiation through settlement.
type Service interface {
	Initiate(ctx context.Context, input InitiateInput) (*models.CollectionSession, error)
	Query(ctx context.Context, sessionID uuid.UUID) (*models.CollectionSession, error)
	ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.CollectionSession, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*models.CollectionSession, error)
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CollectionSession, error)
	ListNonTerminal(ctx context.Context, limit int) ([]models.CollectionSession, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.CollectionSession, error)
}

// InitiateInput starts an STK push against the payer's handset.
type InitiateInput struct {
	OwnerID     uuid.UUID
	PayerPhone  string
	AmountCents int64
	Purpose     enums.CollectionPurpose
	Reference   string
}

type service struct {
	repo        Repository
	provider    provider
	ledger      ledgerApplier
	payments    config.PaymentsConfig
	maxAttempts int
	logger      *logger.Logger
}

// ServiceParams carries the dependencies for NewService.
type ServiceParams struct {
	Repo        Repository
	Provider    provider
	Ledger      ledgerApplier
	Payments    config.PaymentsConfig
	MaxAttempts int
	Logger      *logger.Logger
}

// NewService wires a collection session manager.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("collections repository required")
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
		repo:        params.Repo,
		provider:    params.Provider,
		ledger:      params.Ledger,
		payments:    params.Payments,
		maxAttempts: params.MaxAttempts,
		logger:      params.Logger,
	}, nil
}

// Initiate validates the request, pushes the prompt to the payer, and persists
// the session only after the provider accepts. A provider failure leaves no row.
func (s *service) Initiate(ctx context.Context, input InitiateInput) (*models.CollectionSession, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !input.Purpose.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid collection purpose %q", input.Purpose))
	}
	msisdn, err := phone.NormalizeMSISDN(input.PayerPhone)
	if err != nil {
		return nil, err
	}
	if input.AmountCents < s.payments.MinCollectionCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount below minimum of %d cents", s.payments.MinCollectionCents))
	}
	if input.AmountCents > s.payments.MaxCollectionCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("amount above maximum of %d cents", s.payments.MaxCollectionCents))
	}
	// The provider prompts for whole currency units; a fractional amount would
	// credit the ledger more than the payer is asked for.
	if input.AmountCents%100 != 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a whole number of currency units")
	}

	result, err := s.provider.STKPush(ctx, mpesa.STKPushInput{
		Phone:            msisdn,
		AmountCents:      input.AmountCents,
		AccountReference: input.Reference,
		Description:      string(input.Purpose),
	})
	if err != nil {
		return nil, err
	}

	session := &models.CollectionSession{
		OwnerID:     input.OwnerID,
		PayerPhone:  msisdn,
		AmountCents: input.AmountCents,
		Purpose:     input.Purpose,
		Reference:   input.Reference,
		CheckoutID:  result.CheckoutRequestID,
		Status:      enums.CollectionStatusPending,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithSessionID(ctx, session.ID.String()), "collection initiated")
	return session, nil
}

// Query reconciles a single session against the provider. Terminal sessions
// return stored state without a provider call. A session that exhausts its
// attempt budget while still pending is timed out.
func (s *service) Query(ctx context.Context, sessionID uuid.UUID) (*models.CollectionSession, error) {
	session, err := s.mustFind(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}

	result, err := s.provider.STKQuery(ctx, session.CheckoutID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) ||
			pkgerrors.IsCode(err, pkgerrors.CodeProviderRejected) {
			return s.recordAttempt(ctx, session)
		}
		return nil, err
	}

	if mpesa.ClassifyResultCode(result.ResultCode) == mpesa.OutcomePending {
		return s.recordAttempt(ctx, session)
	}
	return s.ApplyOutcome(ctx, session.ID, result.ResultCode, result.ResultDescription)
}

// recordAttempt bumps the poll counter and times the session out once the
// budget is spent.
func (s *service) recordAttempt(ctx context.Context, session *models.CollectionSession) (*models.CollectionSession, error) {
	if err := s.repo.IncrementPollAttempts(ctx, session.ID); err != nil {
		return nil, err
	}
	session.PollAttempts++
	if session.PollAttempts < s.maxAttempts {
		return session, nil
	}

	description := "no terminal outcome within attempt budget"
	transitioned, err := s.repo.Transition(ctx, session.ID, enums.CollectionStatusTimeout, nil, &description)
	if err != nil {
		return nil, err
	}
	if transitioned {
		session.Status = enums.CollectionStatusTimeout
		session.ResultDescription = &description
		s.logger.Warn(s.logger.WithSessionID(ctx, session.ID.String()), "collection timed out")
	}
	return session, nil
}

// ApplyOutcome is the single transition path shared by Query, the poll job,
// and the callback ingress. Success applies the deposit before the session
// flips; the ledger's reference key makes redelivery harmless.
func (s *service) ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.CollectionSession, error) {
	session, err := s.mustFind(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return session, nil
	}

	target := enums.CollectionStatusFailed
	if mpesa.ClassifyResultCode(resultCode) == mpesa.OutcomeSuccess {
		if _, _, err := s.ledger.Apply(ctx, ledger.ApplyInput{
			OwnerID:           session.OwnerID,
			Type:              enums.WalletTransactionTypeDeposit,
			AmountCents:       session.AmountCents,
			ExternalReference: "mpesa:" + session.CheckoutID,
			Description:       fmt.Sprintf("collection %s (%s)", session.ID, session.Purpose),
		}); err != nil {
			return nil, err
		}
		target = enums.CollectionStatusSuccess
	}

	transitioned, err := s.repo.Transition(ctx, session.ID, target, &resultCode, &resultDescription)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Another path settled it first; re-read the stored state.
		return s.mustFind(ctx, session.ID)
	}

	session.Status = target
	session.ResultCode = &resultCode
	session.ResultDescription = &resultDescription
	s.logger.Info(s.logger.WithSessionID(ctx, session.ID.String()),
		fmt.Sprintf("collection settled as %s", target))
	return session, nil
}

func (s *service) Get(ctx context.Context, sessionID uuid.UUID) (*models.CollectionSession, error) {
	return s.mustFind(ctx, sessionID)
}

func (s *service) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CollectionSession, error) {
	if checkoutID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout id is required")
	}
	return s.repo.FindByCheckoutID(ctx, checkoutID)
}

func (s *service) ListNonTerminal(ctx context.Context, limit int) ([]models.CollectionSession, error) {
	return s.repo.ListNonTerminal(ctx, limit)
}

func (s *service) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.CollectionSession, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListByOwner(ctx, ownerID, limit)
}

func (s *service) mustFind(ctx context.Context, sessionID uuid.UUID) (*models.CollectionSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection session not found")
	}
	return session, nil
}
