package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/api/responses"
	"github.com/wambuinjohi/trainerconnect/api/validators"
	"github.com/wambuinjohi/trainerconnect/internal/disputes"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type disputeOpenRequest struct {
	BookingID     string `json:"booking_id" validate:"required,uuid"`
	ClaimantID    string `json:"claimant_id" validate:"required,uuid"`
	RespondentID  string `json:"respondent_id" validate:"required,uuid"`
	ClaimantPhone string `json:"claimant_phone"`
	AmountCents   int64  `json:"amount_cents" validate:"required,min=1"`
}

// AdminDisputeOpen records a new case against a booking.
func AdminDisputeOpen(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		var payload disputeOpenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bookingID, err := pathUUID(payload.BookingID, "booking id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		claimantID, err := pathUUID(payload.ClaimantID, "claimant id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		respondentID, err := pathUUID(payload.RespondentID, "respondent id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kase, err := svc.Open(r.Context(), disputes.OpenInput{
			BookingID:     bookingID,
			ClaimantID:    claimantID,
			RespondentID:  respondentID,
			ClaimantPhone: payload.ClaimantPhone,
			AmountCents:   payload.AmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, disputeResponseFromModel(kase))
	}
}

// AdminDisputeList returns open cases for review.
func AdminDisputeList(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cases, err := svc.ListOpen(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]disputeResponse, 0, len(cases))
		for i := range cases {
			out = append(out, disputeResponseFromModel(&cases[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type disputeRefundRequest struct {
	ClaimantPhone string `json:"claimant_phone"`
	AmountCents   int64  `json:"amount_cents" validate:"min=0"`
	Reason        string `json:"reason" validate:"required,min=3"`
}

// AdminDisputeRefund starts a refund disbursement for an open case. The case
// resolves only once the provider confirms the payment landed.
func AdminDisputeRefund(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disputes service unavailable"))
			return
		}

		caseID, err := pathUUID(chi.URLParam(r, "disputeId"), "dispute id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload disputeRefundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Refund(r.Context(), disputes.RefundInput{
			CaseID:        caseID,
			ClaimantPhone: payload.ClaimantPhone,
			AmountCents:   payload.AmountCents,
			Reason:        payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, disbursementResponseFromModel(session))
	}
}

type disputeResponse struct {
	ID             uuid.UUID           `json:"id"`
	BookingID      uuid.UUID           `json:"booking_id"`
	ClaimantID     uuid.UUID           `json:"claimant_id"`
	RespondentID   uuid.UUID           `json:"respondent_id"`
	ClaimantPhone  string              `json:"claimant_phone,omitempty"`
	AmountCents    int64               `json:"amount_cents"`
	Status         enums.DisputeStatus `json:"status"`
	ResolutionNote *string             `json:"resolution_note,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func disputeResponseFromModel(m *models.DisputeCase) disputeResponse {
	return disputeResponse{
		ID:             m.ID,
		BookingID:      m.BookingID,
		ClaimantID:     m.ClaimantID,
		RespondentID:   m.RespondentID,
		ClaimantPhone:  m.ClaimantPhone,
		AmountCents:    m.AmountCents,
		Status:         m.Status,
		ResolutionNote: m.ResolutionNote,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
