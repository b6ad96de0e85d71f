package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wambuinjohi/trainerconnect/internal/reconcile"
	"github.com/wambuinjohi/trainerconnect/pkg/db/models"
	"github.com/wambuinjohi/trainerconnect/pkg/enums"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

type fakeCollections struct {
	sessions map[string]*models.CollectionSession
	outcomes []string
}

func (f *fakeCollections) FindByCheckoutID(ctx context.Context, checkoutID string) (*models.CollectionSession, error) {
	return f.sessions[checkoutID], nil
}

func (f *fakeCollections) ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.CollectionSession, error) {
	f.outcomes = append(f.outcomes, resultCode)
	return &models.CollectionSession{ID: sessionID, Status: enums.CollectionStatusSuccess}, nil
}

type fakeDisbursements struct {
	sessions map[string]*models.DisbursementSession
	outcomes []string
}

func (f *fakeDisbursements) FindByProviderRef(ctx context.Context, providerRef string) (*models.DisbursementSession, error) {
	return f.sessions[providerRef], nil
}

func (f *fakeDisbursements) ApplyOutcome(ctx context.Context, sessionID uuid.UUID, resultCode, resultDescription string) (*models.DisbursementSession, error) {
	f.outcomes = append(f.outcomes, resultCode)
	return &models.DisbursementSession{ID: sessionID, Status: enums.DisbursementStatusCompleted}, nil
}

type fakeDedupe struct {
	seen map[string]bool
}

func (f *fakeDedupe) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeDedupe) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.seen, key)
	}
	return nil
}

func (f *fakeDedupe) CallbackKey(kind, reference string) string {
	return "tc:callback:" + kind + ":" + reference
}

func newWebhookFixture(t *testing.T) (*reconcile.Service, *fakeCollections, *fakeDisbursements) {
	t.Helper()

	cols := &fakeCollections{sessions: map[string]*models.CollectionSession{}}
	disbs := &fakeDisbursements{sessions: map[string]*models.DisbursementSession{}}

	svc, err := reconcile.NewService(reconcile.ServiceParams{
		Collections:   cols,
		Disbursements: disbs,
		Dedupe:        &fakeDedupe{},
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("build reconcile service: %v", err)
	}
	return svc, cols, disbs
}

func TestMpesaCollectionCallbackRoutesToSession(t *testing.T) {
	svc, cols, _ := newWebhookFixture(t)
	sessionID := uuid.New()
	cols.sessions["ws_CO_1"] = &models.CollectionSession{ID: sessionID, CheckoutID: "ws_CO_1", Status: enums.CollectionStatusPending}

	handler := MpesaCollectionCallback(svc, nil)

	payload := `{"Body":{"stkCallback":{"MerchantRequestID":"mr-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"The service request is processed successfully."}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa/collection", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(cols.outcomes) != 1 || cols.outcomes[0] != "0" {
		t.Fatalf("outcomes = %v, want [0]", cols.outcomes)
	}
}

func TestMpesaCollectionCallbackDuplicateDeliveryIsAcknowledged(t *testing.T) {
	svc, cols, _ := newWebhookFixture(t)
	cols.sessions["ws_CO_2"] = &models.CollectionSession{ID: uuid.New(), CheckoutID: "ws_CO_2", Status: enums.CollectionStatusPending}

	handler := MpesaCollectionCallback(svc, nil)
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":0,"ResultDesc":"ok"}}}`

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa/collection", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i, rec.Code)
		}
	}

	if len(cols.outcomes) != 1 {
		t.Fatalf("outcome applied %d times, want 1", len(cols.outcomes))
	}
}

func TestMpesaCollectionCallbackRejectsMalformedPayload(t *testing.T) {
	svc, _, _ := newWebhookFixture(t)
	handler := MpesaCollectionCallback(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa/collection", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMpesaCollectionCallbackMissingCheckoutID(t *testing.T) {
	svc, _, _ := newWebhookFixture(t)
	handler := MpesaCollectionCallback(svc, nil)

	payload := `{"Body":{"stkCallback":{"ResultCode":0,"ResultDesc":"ok"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa/collection", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMpesaDisbursementCallbackRoutesByConversationID(t *testing.T) {
	svc, _, disbs := newWebhookFixture(t)
	sessionID := uuid.New()
	disbs.sessions["AG_1"] = &models.DisbursementSession{ID: sessionID, ProviderRef: "AG_1", Status: enums.DisbursementStatusInitiated}

	handler := MpesaDisbursementCallback(svc, nil)

	payload := `{"Result":{"ResultType":0,"ResultCode":0,"ResultDesc":"ok","ConversationID":"AG_1","TransactionID":"QK12345"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa/disbursement", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(disbs.outcomes) != 1 || disbs.outcomes[0] != "0" {
		t.Fatalf("outcomes = %v, want [0]", disbs.outcomes)
	}
}

func TestMpesaDisbursementCallbackUnknownReferenceIsAcknowledged(t *testing.T) {
	svc, _, disbs := newWebhookFixture(t)
	handler := MpesaDisbursementCallback(svc, nil)

	payload := `{"Result":{"ResultCode":0,"ResultDesc":"ok","ConversationID":"AG_unknown"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mpesa/disbursement", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(disbs.outcomes) != 0 {
		t.Fatal("no outcome should apply for an unknown reference")
	}
}
