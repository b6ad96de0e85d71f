package webhooks

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wambuinjohi/trainerconnect/api/responses"
	"github.com/wambuinjohi/trainerconnect/internal/reconcile"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

// stkCallbackEnvelope mirrors the daraja STK push result payload. ResultCode
// arrives as a JSON number.
type stkCallbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// b2cResultEnvelope mirrors the daraja B2C result payload.
type b2cResultEnvelope struct {
	Result struct {
		ResultType               int         `json:"ResultType"`
		ResultCode               json.Number `json:"ResultCode"`
		ResultDesc               string      `json:"ResultDesc"`
		OriginatorConversationID string      `json:"OriginatorConversationID"`
		ConversationID           string      `json:"ConversationID"`
		TransactionID            string      `json:"TransactionID"`
	} `json:"Result"`
}

// MpesaCollectionCallback ingests STK push results. The provider retries on
// non-200, so processing failures surface as errors while duplicates and
// unknown references are acknowledged.
func MpesaCollectionCallback(svc *reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var envelope stkCallbackEnvelope
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback payload"))
			return
		}

		callback := envelope.Body.StkCallback
		checkoutID := strings.TrimSpace(callback.CheckoutRequestID)
		if checkoutID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing checkout request id"))
			return
		}

		err := svc.HandleProviderEvent(
			r.Context(),
			enums.ProviderEventKindCollection,
			checkoutID,
			callback.ResultCode.String(),
			callback.ResultDesc,
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}

// MpesaDisbursementCallback ingests B2C results keyed by conversation id.
func MpesaDisbursementCallback(svc *reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var envelope b2cResultEnvelope
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid callback payload"))
			return
		}

		result := envelope.Result
		conversationID := strings.TrimSpace(result.ConversationID)
		if conversationID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "missing conversation id"))
			return
		}

		err := svc.HandleProviderEvent(
			r.Context(),
			enums.ProviderEventKindDisbursement,
			conversationID,
			result.ResultCode.String(),
			result.ResultDesc,
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
