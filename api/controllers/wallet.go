package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/api/responses"
	"github.com/wambuinjohi/trainerconnect/api/validators"
	"github.com/wambuinjohi/trainerconnect/internal/ledger"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type walletResponse struct {
	OwnerID        uuid.UUID `json:"owner_id"`
	BalanceCents   int64     `json:"balance_cents"`
	AvailableCents int64     `json:"available_cents"`
	PendingCents   int64     `json:"pending_cents"`
}

type walletTransactionResponse struct {
	ID                uuid.UUID                   `json:"id"`
	Type              enums.WalletTransactionType `json:"type"`
	AmountCents       int64                       `json:"amount_cents"`
	ExternalReference string                      `json:"external_reference"`
	BalanceAfterCents int64                       `json:"balance_after_cents"`
	Description       string                      `json:"description,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
}

// WalletFetch returns the caller's balances, zeroed when no account exists yet.
func WalletFetch(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		ownerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wallet, err := svc.GetWallet(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, walletResponse{
			OwnerID:        ownerID,
			BalanceCents:   wallet.BalanceCents,
			AvailableCents: wallet.AvailableCents,
			PendingCents:   wallet.PendingCents,
		})
	}
}

// WalletTransactions lists the caller's ledger entries, newest first.
func WalletTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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

		entries, err := svc.ListTransactions(r.Context(), ownerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]walletTransactionResponse, 0, len(entries))
		for i := range entries {
			out = append(out, walletTransactionFromModel(&entries[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func walletTransactionFromModel(m *models.WalletTransaction) walletTransactionResponse {
	return walletTransactionResponse{
		ID:                m.ID,
		Type:              m.Type,
		AmountCents:       m.AmountCents,
		ExternalReference: m.ExternalReference,
		BalanceAfterCents: m.BalanceAfterCents,
		Description:       m.Description,
		CreatedAt:         m.CreatedAt,
	}
}
