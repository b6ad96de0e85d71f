package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/api/responses"
	"github.com/wambuinjohi/trainerconnect/api/validators"
	"github.com/wambuinjohi/trainerconnect/internal/payouts"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type payoutRequestBody struct {
	PayoutPhone string `json:"payout_phone" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,min=1"`
}

// PayoutRequest opens a payout request for the authenticated trainer.
func PayoutRequest(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		trainerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payoutRequestBody
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Request(r.Context(), payouts.RequestInput{
			TrainerID:   trainerID,
			PayoutPhone: payload.PayoutPhone,
			AmountCents: payload.AmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, payoutResponseFromModel(request))
	}
}

// PayoutList returns the caller's payout requests.
func PayoutList(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		trainerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := svc.List(r.Context(), trainerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]payoutResponse, 0, len(requests))
		for i := range requests {
			out = append(out, payoutResponseFromModel(&requests[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminPayoutQueue lists requests awaiting review.
func AdminPayoutQueue(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := svc.ListPending(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]payoutResponse, 0, len(requests))
		for i := range requests {
			out = append(out, payoutResponseFromModel(&requests[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type payoutApproveRequest struct {
	CommissionPercent int `json:"commission_percent" validate:"min=0,max=100"`
}

// AdminPayoutApprove settles commission and opens the trainer's disbursement.
func AdminPayoutApprove(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		reviewerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := pathUUID(chi.URLParam(r, "payoutId"), "payout id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payoutApproveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Approve(r.Context(), requestID, reviewerID, payload.CommissionPercent)
		if err != nil {
			// The approval may have stuck even when opening the disbursement
			// did not; surface the request state alongside the error code.
			if request != nil && pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) {
				responses.WriteSuccessStatus(w, http.StatusAccepted, payoutResponseFromModel(request))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, payoutResponseFromModel(request))
	}
}

type payoutRejectRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// AdminPayoutReject closes a pending request without moving money.
func AdminPayoutReject(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts service unavailable"))
			return
		}

		reviewerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := pathUUID(chi.URLParam(r, "payoutId"), "payout id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payoutRejectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Reject(r.Context(), requestID, reviewerID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payoutResponseFromModel(request))
	}
}

type payoutResponse struct {
	ID                uuid.UUID          `json:"id"`
	TrainerID         uuid.UUID          `json:"trainer_id"`
	PayoutPhone       string             `json:"payout_phone"`
	AmountCents       int64              `json:"amount_cents"`
	Status            enums.PayoutStatus `json:"status"`
	CommissionPercent *int               `json:"commission_percent,omitempty"`
	NetAmountCents    *int64             `json:"net_amount_cents,omitempty"`
	ReviewedBy        *uuid.UUID         `json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time         `json:"reviewed_at,omitempty"`
	RejectionReason   *string            `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

func payoutResponseFromModel(m *models.PayoutRequest) payoutResponse {
	return payoutResponse{
		ID:                m.ID,
		TrainerID:         m.TrainerID,
		PayoutPhone:       m.PayoutPhone,
		AmountCents:       m.AmountCents,
		Status:            m.Status,
		CommissionPercent: m.CommissionPercent,
		NetAmountCents:    m.NetAmountCents,
		ReviewedBy:        m.ReviewedBy,
		ReviewedAt:        m.ReviewedAt,
		RejectionReason:   m.RejectionReason,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
