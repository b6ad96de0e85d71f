package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/api/middleware"
	"github.com/wambuinjohi/trainerconnect/api/responses"
	"github.com/wambuinjohi/trainerconnect/api/validators"
	"github.com/wambuinjohi/trainerconnect/internal/collections"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type collectionInitiateRequest struct {
	PayerPhone  string `json:"payer_phone" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,min=1"`
	Purpose     string `json:"purpose" validate:"required"`
	Reference   string `json:"reference"`
}

// CollectionInitiate pushes an STK prompt to the caller's handset.
func CollectionInitiate(svc collections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "collections service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload collectionInitiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purpose, err := enums.ParseCollectionPurpose(payload.Purpose)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid collection purpose"))
			return
		}

		session, err := svc.Initiate(r.Context(), collections.InitiateInput{
			OwnerID:     ownerID,
			PayerPhone:  payload.PayerPhone,
			AmountCents: payload.AmountCents,
			Purpose:     purpose,
			Reference:   payload.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, collectionResponseFromModel(session))
	}
}

// CollectionDetail returns the stored session without touching the provider.
func CollectionDetail(svc collections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := loadOwnedCollection(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, collectionResponseFromModel(session))
	}
}

// CollectionQuery forces a provider status check for a session the caller owns.
func CollectionQuery(svc collections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := loadOwnedCollection(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		refreshed, err := svc.Query(r.Context(), session.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, collectionResponseFromModel(refreshed))
	}
}

// CollectionList returns the caller's sessions, newest first.
func CollectionList(svc collections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "collections service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessions, err := svc.ListByOwner(r.Context(), ownerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]collectionResponse, 0, len(sessions))
		for i := range sessions {
			out = append(out, collectionResponseFromModel(&sessions[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func loadOwnedCollection(r *http.Request, svc collections.Service) (*models.CollectionSession, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "collections service unavailable")
	}

	ownerID, err := actorID(r)
	if err != nil {
		return nil, err
	}

	sessionID, err := pathUUID(chi.URLParam(r, "sessionId"), "session id")
	if err != nil {
		return nil, err
	}

	session, err := svc.Get(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}

	if session.OwnerID != ownerID && middleware.RoleFromContext(r.Context()) != string(enums.ActorRoleAdmin) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "collection session not found")
	}
	return session, nil
}

type collectionResponse struct {
	ID                uuid.UUID               `json:"id"`
	OwnerID           uuid.UUID               `json:"owner_id"`
	PayerPhone        string                  `json:"payer_phone"`
	AmountCents       int64                   `json:"amount_cents"`
	Purpose           enums.CollectionPurpose `json:"purpose"`
	Reference         string                  `json:"reference,omitempty"`
	CheckoutID        string                  `json:"checkout_id,omitempty"`
	Status            enums.CollectionStatus  `json:"status"`
	ResultCode        *string                 `json:"result_code,omitempty"`
	ResultDescription *string                 `json:"result_description,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	UpdatedAt         time.Time               `json:"updated_at"`
}

func collectionResponseFromModel(m *models.CollectionSession) collectionResponse {
	return collectionResponse{
		ID:                m.ID,
		OwnerID:           m.OwnerID,
		PayerPhone:        m.PayerPhone,
		AmountCents:       m.AmountCents,
		Purpose:           m.Purpose,
		Reference:         m.Reference,
		CheckoutID:        m.CheckoutID,
		Status:            m.Status,
		ResultCode:        m.ResultCode,
		ResultDescription: m.ResultDescription,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
