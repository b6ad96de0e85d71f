package mpesa

import (
	"strconv"

	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
)

// Known provider result codes for STK query and async callbacks.
const (
	ResultCodeSuccess           = "0"
	ResultCodeInsufficientFunds = "1"
	ResultCodeCancelledByUser   = "1032"
	ResultCodeTimeout           = "1037"
	ResultCodeWrongPIN          = "2001"
	ResultCodeStillProcessing   = "1001"
	ResultCodePendingConfirm    = "500.001.1001"
)

// Outcome classifies a provider result code.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailed
)

// ClassifyResultCode maps a provider result code onto the session outcome. The
// provider is untrusted; unknown codes are treated as failures, not pending,
// so sessions cannot hang on garbage input.
func ClassifyResultCode(code string) Outcome {
	switch code {
	case ResultCodeSuccess:
		return OutcomeSuccess
	case ResultCodeStillProcessing, ResultCodePendingConfirm:
		return OutcomePending
	default:
		return OutcomeFailed
	}
}

// STKPushInput starts a collection against the payer's handset.
type STKPushInput struct {
	Phone            string
	AmountCents      int64
	AccountReference string
	Description      string
}

// STKPushResult carries the checkout reference the reconciliation paths key on.
type STKPushResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// QueryResult is the polled outcome of a collection.
type QueryResult struct {
	ResultCode        string
	ResultDescription string
}

// B2CInput pushes a payout or refund to a recipient.
type B2CInput struct {
	Phone       string
	AmountCents int64
	Remarks     string
	Occasion    string
}

// B2CResult carries the provider reference for an accepted disbursement.
type B2CResult struct {
	ConversationID           string
	OriginatorConversationID string
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

func (i STKPushInput) toRequest(shortCode, callbackURL string) stkPushRequest {
	return stkPushRequest{
		BusinessShortCode: shortCode,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            wholeUnits(i.AmountCents),
		PartyA:            i.Phone,
		PartyB:            shortCode,
		PhoneNumber:       i.Phone,
		CallBackURL:       callbackURL,
		AccountReference:  i.AccountReference,
		TransactionDesc:   i.Description,
	}
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
}

type b2cRequest struct {
	InitiatorName   string `json:"InitiatorName"`
	CommandID       string `json:"CommandID"`
	Amount          string `json:"Amount"`
	PartyA          string `json:"PartyA"`
	PartyB          string `json:"PartyB"`
	Remarks         string `json:"Remarks"`
	QueueTimeOutURL string `json:"QueueTimeOutURL"`
	ResultURL       string `json:"ResultURL"`
	Occasion        string `json:"Occasion"`
}

func (i B2CInput) toRequest(shortCode, initiator, callbackURL string) b2cRequest {
	return b2cRequest{
		InitiatorName:   initiator,
		CommandID:       "BusinessPayment",
		Amount:          wholeUnits(i.AmountCents),
		PartyA:          shortCode,
		PartyB:          i.Phone,
		Remarks:         i.Remarks,
		QueueTimeOutURL: callbackURL,
		ResultURL:       callbackURL,
		Occasion:        i.Occasion,
	}
}

type b2cResponse struct {
	ConversationID           string `json:"ConversationID"`
	OriginatorConversationID string `json:"OriginatorConversationID"`
	ResponseCode             string `json:"ResponseCode"`
	ResponseDescription      string `json:"ResponseDescription"`
}

// wholeUnits renders cents as whole currency units. Callers must pass a
// multiple of 100; validateAmountCents enforces that before any request is
// built, so the rendered amount always equals the cents being ledgered.
func wholeUnits(cents int64) string {
	return strconv.FormatInt(cents/100, 10)
}

func validateAmountCents(cents int64) error {
	if cents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if cents%100 != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be a whole number of currency units")
	}
	return nil
}
