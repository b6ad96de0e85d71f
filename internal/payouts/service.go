package payouts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/internal/disbursements"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
	"github.com/wambuinjohi/trainerconnect/pkg/phone"
)

type disbursementService interface {
	Create(ctx context.Context, input disbursements.CreateInput) (*models.DisbursementSession, error)
	Initiate(ctx context.Context, sessionID uuid.UUID) (*models.DisbursementSession, error)
	FindByLinkedEntity(ctx context.Context, linkedEntityID uuid.UUID) ([]models.DisbursementSession, error)
}

// Service runs the payout review workflow: trainers request, admins approve or
// reject, and an approved request turns into a disbursement for the net amount
// after commission.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.PayoutRequest, error)
	Approve(ctx context.Context, requestID, reviewerID uuid.UUID, commissionPercent int) (*models.PayoutRequest, error)
	Reject(ctx context.Context, requestID, reviewerID uuid.UUID, reason string) (*models.PayoutRequest, error)
	ResumeApproved(ctx context.Context) (int, error)
	Get(ctx context.Context, requestID uuid.UUID) (*models.PayoutRequest, error)
	List(ctx context.Context, trainerID uuid.UUID, limit int) ([]models.PayoutRequest, error)
	ListPending(ctx context.Context, limit int) ([]models.PayoutRequest, error)
}

// RequestInput opens a payout request for admin review.
type RequestInput struct {
	TrainerID   uuid.UUID
	PayoutPhone string
	AmountCents int64
}

type service struct {
	repo          Repository
	disbursements disbursementService
	logger        *logger.Logger
}

// NewService wires the payout workflow.
func NewService(repo Repository, disb disbursementService, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if disb == nil {
		return nil, fmt.Errorf("disbursement service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, disbursements: disb, logger: logg}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.PayoutRequest, error) {
	if input.TrainerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trainer id is required")
	}
	msisdn, err := phone.NormalizeMSISDN(input.PayoutPhone)
	if err != nil {
		return nil, err
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	request := &models.PayoutRequest{
		TrainerID:   input.TrainerID,
		PayoutPhone: msisdn,
		AmountCents: input.AmountCents,
		Status:      enums.PayoutStatusPending,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithUserID(ctx, input.TrainerID.String()), "payout requested")
	return request, nil
}

// Approve fixes the commission terms and opens the payout disbursement for the
// net amount. If the process dies between the approval and the session,
// ResumeApproved closes the gap later.
func (s *service) Approve(ctx context.Context, requestID, reviewerID uuid.UUID, commissionPercent int) (*models.PayoutRequest, error) {
	if reviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewer id is required")
	}
	request, err := s.mustFind(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.PayoutStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("request is %s, only pending requests can be approved", request.Status))
	}

	net, err := netAfterCommission(request.AmountCents, commissionPercent)
	if err != nil {
		return nil, err
	}
	if net <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "net amount after commission is zero")
	}

	approved, err := s.repo.Approve(ctx, request.ID, commissionPercent, net, reviewerID)
	if err != nil {
		return nil, err
	}
	if !approved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request was reviewed concurrently")
	}
	request.Status = enums.PayoutStatusApproved
	request.CommissionPercent = &commissionPercent
	request.NetAmountCents = &net
	request.ReviewedBy = &reviewerID

	if err := s.openDisbursement(ctx, request); err != nil {
		// The approval stands; the resume job will retry the session.
		s.logger.Error(ctx, "open payout disbursement", err)
		return request, err
	}
	s.logger.Info(s.logger.WithUserID(ctx, request.TrainerID.String()), "payout approved")
	return request, nil
}

func (s *service) openDisbursement(ctx context.Context, request *models.PayoutRequest) error {
	session, err := s.disbursements.Create(ctx, disbursements.CreateInput{
		OwnerID:        request.TrainerID,
		RecipientPhone: request.PayoutPhone,
		AmountCents:    *request.NetAmountCents,
		Purpose:        enums.DisbursementPurposePayout,
		LinkedEntityID: request.ID,
	})
	if err != nil {
		return err
	}
	if _, err := s.disbursements.Initiate(ctx, session.ID); err != nil {
		// Session exists; outages are retried by the poller.
		if pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) {
			s.logger.Warn(ctx, "payout initiation deferred, provider unavailable")
			return nil
		}
		return err
	}
	return nil
}

func (s *service) Reject(ctx context.Context, requestID, reviewerID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	if reviewerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewer id is required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}
	request, err := s.mustFind(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != enums.PayoutStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("request is %s, only pending requests can be rejected", request.Status))
	}

	rejected, err := s.repo.Reject(ctx, request.ID, reviewerID, reason)
	if err != nil {
		return nil, err
	}
	if !rejected {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request was reviewed concurrently")
	}
	request.Status = enums.PayoutStatusRejected
	request.RejectionReason = &reason
	request.ReviewedBy = &reviewerID
	return request, nil
}

// ResumeApproved backfills disbursements for approved requests that lost
// theirs to a crash, and nudges pending sessions toward the provider. Returns
// the number of requests it acted on.
func (s *service) ResumeApproved(ctx context.Context) (int, error) {
	requests, err := s.repo.ListByStatus(ctx, enums.PayoutStatusApproved, 0)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, request := range requests {
		sessions, err := s.disbursements.FindByLinkedEntity(ctx, request.ID)
		if err != nil {
			return resumed, err
		}

		if len(sessions) == 0 {
			req := request
			if err := s.openDisbursement(ctx, &req); err != nil {
				s.logger.Error(ctx, "resume approved payout", err)
				continue
			}
			resumed++
			continue
		}

		// A session stuck in pending never reached the provider; push it.
		// Initiated, completed, and failed sessions are left to the poller
		// or an operator.
		for _, session := range sessions {
			if session.Status != enums.DisbursementStatusPending {
				continue
			}
			if _, err := s.disbursements.Initiate(ctx, session.ID); err != nil {
				s.logger.Error(ctx, "resume pending payout session", err)
				continue
			}
			resumed++
		}
	}
	return resumed, nil
}

func (s *service) Get(ctx context.Context, requestID uuid.UUID) (*models.PayoutRequest, error) {
	return s.mustFind(ctx, requestID)
}

func (s *service) List(ctx context.Context, trainerID uuid.UUID, limit int) ([]models.PayoutRequest, error) {
	if trainerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "trainer id is required")
	}
	return s.repo.ListByTrainer(ctx, trainerID, limit)
}

func (s *service) ListPending(ctx context.Context, limit int) ([]models.PayoutRequest, error) {
	return s.repo.ListByStatus(ctx, enums.PayoutStatusPending, limit)
}

func (s *service) mustFind(ctx context.Context, requestID uuid.UUID) (*models.PayoutRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
	}
	return request, nil
}
