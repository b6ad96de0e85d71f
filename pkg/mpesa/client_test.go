package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wambuinjohi/trainerconnect/pkg/config"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

func testClient(t *testing.T, urls []string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test"})
	client, err := NewClient(context.Background(), config.MpesaConfig{
		BaseURLs:    urls,
		AccessToken: "token",
		ShortCode:   "600999",
		CallbackURL: "https://example.test/webhooks/mpesa",
		MaxRetries:  0,
	}, logg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestSTKPushReturnsCheckoutID(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req stkPushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Amount != "150" {
			t.Fatalf("expected whole-unit amount 150, got %s", req.Amount)
		}
		json.NewEncoder(w).Encode(stkPushResponse{
			CheckoutRequestID: "ws_CO_123",
			ResponseCode:      "0",
		})
	}))
	defer srv.Close()

	client := testClient(t, []string{srv.URL})
	result, err := client.STKPush(context.Background(), STKPushInput{
		Phone:            "254712345678",
		AmountCents:      15000,
		AccountReference: "booking-1",
	})
	if err != nil {
		t.Fatalf("STKPush: %v", err)
	}
	if result.CheckoutRequestID != "ws_CO_123" {
		t.Fatalf("unexpected checkout id %q", result.CheckoutRequestID)
	}
	if gotAuth != "Bearer token" {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
}

func TestSTKPushProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
	}))
	defer srv.Close()

	client := testClient(t, []string{srv.URL})
	_, err := client.STKPush(context.Background(), STKPushInput{Phone: "bad", AmountCents: 1000})
	if !pkgerrors.IsCode(err, pkgerrors.CodeProviderRejected) {
		t.Fatalf("expected provider rejection, got %v", err)
	}
}

func TestFailoverToSecondEndpoint(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	var hits int
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(stkQueryResponse{ResultCode: "0", ResultDesc: "Success"})
	}))
	defer up.Close()

	client := testClient(t, []string{down.URL, up.URL})

	result, err := client.STKQuery(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("STKQuery: %v", err)
	}
	if result.ResultCode != "0" {
		t.Fatalf("unexpected result code %q", result.ResultCode)
	}

	// Second call should go straight to the cached healthy endpoint.
	if _, err := client.STKQuery(context.Background(), "ws_CO_2"); err != nil {
		t.Fatalf("second STKQuery: %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected healthy endpoint to serve both calls, got %d hits", hits)
	}
}

func TestAllEndpointsDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := testClient(t, []string{srv.URL})
	_, err := client.STKQuery(context.Background(), "ws_CO_1")
	if !pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
}

func TestB2CRejectionByResponseCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(b2cResponse{
			ResponseCode:        "1",
			ResponseDescription: "Initiator not allowed",
		})
	}))
	defer srv.Close()

	client := testClient(t, []string{srv.URL})
	_, err := client.B2CPayment(context.Background(), B2CInput{Phone: "254700000001", AmountCents: 95000})
	if !pkgerrors.IsCode(err, pkgerrors.CodeProviderRejected) {
		t.Fatalf("expected provider rejection, got %v", err)
	}
}

func TestB2CAmountMatchesLedgeredCents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req b2cRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Amount != "950" {
			t.Fatalf("expected whole-unit amount 950 for 95000 cents, got %s", req.Amount)
		}
		json.NewEncoder(w).Encode(b2cResponse{ConversationID: "AG_1", ResponseCode: "0"})
	}))
	defer srv.Close()

	client := testClient(t, []string{srv.URL})
	if _, err := client.B2CPayment(context.Background(), B2CInput{Phone: "254700000001", AmountCents: 95000}); err != nil {
		t.Fatalf("B2CPayment: %v", err)
	}
}

func TestFractionalAmountsNeverReachTheProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("a fractional amount must be rejected before any request is sent")
	}))
	defer srv.Close()

	client := testClient(t, []string{srv.URL})

	_, err := client.STKPush(context.Background(), STKPushInput{Phone: "254712345678", AmountCents: 550})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for 550 cents, got %v", err)
	}

	_, err = client.B2CPayment(context.Background(), B2CInput{Phone: "254700000001", AmountCents: 950})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for 950 cents, got %v", err)
	}
}

func TestClassifyResultCode(t *testing.T) {
	tests := []struct {
		code string
		want Outcome
	}{
		{ResultCodeSuccess, OutcomeSuccess},
		{ResultCodeStillProcessing, OutcomePending},
		{ResultCodePendingConfirm, OutcomePending},
		{ResultCodeCancelledByUser, OutcomeFailed},
		{ResultCodeInsufficientFunds, OutcomeFailed},
		{ResultCodeTimeout, OutcomeFailed},
		{"garbage", OutcomeFailed},
	}
	for _, tc := range tests {
		if got := ClassifyResultCode(tc.code); got != tc.want {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, got)
		}
	}
}

func TestNewClientValidation(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	if _, err := NewClient(context.Background(), config.MpesaConfig{
		BaseURLs:  []string{"https://x"},
		ShortCode: "600999",
	}, logg); err == nil {
		t.Fatal("expected error for missing access token")
	}
	if _, err := NewClient(context.Background(), config.MpesaConfig{
		AccessToken: "t",
		ShortCode:   "600999",
	}, logg); err == nil {
		t.Fatal("expected error for missing base urls")
	}
}
