package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/api/responses"
	"github.com/wambuinjohi/trainerconnect/api/validators"
	"github.com/wambuinjohi/trainerconnect/internal/disbursements"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type disbursementCreateRequest struct {
	OwnerID        string `json:"owner_id" validate:"required,uuid"`
	RecipientPhone string `json:"recipient_phone" validate:"required"`
	AmountCents    int64  `json:"amount_cents" validate:"required,min=1"`
	Purpose        string `json:"purpose" validate:"required"`
	LinkedEntityID string `json:"linked_entity_id" validate:"required,uuid"`
}

// DisbursementCreate reserves funds and opens an outbound session, then
// immediately attempts the provider call. A provider outage leaves the session
// pending for the poller to pick up.
func DisbursementCreate(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursements service unavailable"))
			return
		}

		var payload disbursementCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ownerID, err := pathUUID(payload.OwnerID, "owner id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		linkedID, err := pathUUID(payload.LinkedEntityID, "linked entity id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purpose, err := enums.ParseDisbursementPurpose(payload.Purpose)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid disbursement purpose"))
			return
		}

		session, err := svc.Create(r.Context(), disbursements.CreateInput{
			OwnerID:        ownerID,
			RecipientPhone: payload.RecipientPhone,
			AmountCents:    payload.AmountCents,
			Purpose:        purpose,
			LinkedEntityID: linkedID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		initiated, err := svc.Initiate(r.Context(), session.ID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) {
				responses.WriteSuccessStatus(w, http.StatusAccepted, disbursementResponseFromModel(session))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, disbursementResponseFromModel(initiated))
	}
}

// DisbursementDetail returns one outbound session.
func DisbursementDetail(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursements service unavailable"))
			return
		}

		sessionID, err := pathUUID(chi.URLParam(r, "sessionId"), "session id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disbursementResponseFromModel(session))
	}
}

type disbursementFailRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// DisbursementFail lets an operator close out a stuck session, releasing any
// held funds.
func DisbursementFail(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "disbursements service unavailable"))
			return
		}

		sessionID, err := pathUUID(chi.URLParam(r, "sessionId"), "session id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload disbursementFailRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.AdminFail(r.Context(), sessionID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disbursementResponseFromModel(session))
	}
}

type disbursementResponse struct {
	ID             uuid.UUID                 `json:"id"`
	OwnerID        uuid.UUID                 `json:"owner_id"`
	RecipientPhone string                    `json:"recipient_phone"`
	AmountCents    int64                     `json:"amount_cents"`
	Purpose        enums.DisbursementPurpose `json:"purpose"`
	LinkedEntityID uuid.UUID                 `json:"linked_entity_id"`
	ProviderRef    string                    `json:"provider_ref,omitempty"`
	Status         enums.DisbursementStatus  `json:"status"`
	TransactionID  *uuid.UUID                `json:"transaction_id,omitempty"`
	FailureReason  *string                   `json:"failure_reason,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

func disbursementResponseFromModel(m *models.DisbursementSession) disbursementResponse {
	return disbursementResponse{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		RecipientPhone: m.RecipientPhone,
		AmountCents:    m.AmountCents,
		Purpose:        m.Purpose,
		LinkedEntityID: m.LinkedEntityID,
		ProviderRef:    m.ProviderRef,
		Status:         m.Status,
		TransactionID:  m.TransactionID,
		FailureReason:  m.FailureReason,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
