package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/wambuinjohi/trainerconnect/pkg/config"
	pkgerrors "github.com/wambuinjohi/trainerconnect/pkg/errors"
	"github.com/wambuinjohi/trainerconnect/pkg/logger"
)

const (
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"
	b2cPath      = "/mpesa/b2c/v1/paymentrequest"
)

var (
	errAccessTokenRequired = errors.New("mpesa access token is required")
	errShortCodeRequired   = errors.New("mpesa shortcode is required")
	errBaseURLRequired     = errors.New("at least one mpesa base url is required")
	errLoggerRequired      = errors.New("mpesa logger is required")
)

// Client exposes the mobile-money primitives with centralized auth, logging,
// retry, endpoint failover, and error mapping. Credential exchange and request
// signing are handled upstream; the client sends an opaque bearer token.
type Client struct {
	httpClient  *http.Client
	endpoints   *endpointHolder
	accessToken string
	shortCode   string
	initiator   string
	callbackURL string
	maxRetries  uint64
	logger      *logger.Logger
}

// NewClient initializes the provider wrapper and validates the configuration.
func NewClient(ctx context.Context, cfg config.MpesaConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errAccessTokenRequired
	}
	shortCode := strings.TrimSpace(cfg.ShortCode)
	if shortCode == "" {
		return nil, errShortCodeRequired
	}
	holder, err := newEndpointHolder(cfg.BaseURLs)
	if err != nil {
		return nil, err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:  &http.Client{Timeout: timeout},
		endpoints:   holder,
		accessToken: token,
		shortCode:   shortCode,
		initiator:   cfg.InitiatorName,
		callbackURL: cfg.CallbackURL,
		maxRetries:  cfg.MaxRetries,
		logger:      logg,
	}

	logg.Info(ctx, "mpesa client initialized")
	return c, nil
}

// NewIdempotencyKey returns a unique key for provider operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "tc"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// STKPush asks the provider to prompt the payer's handset for the amount.
func (c *Client) STKPush(ctx context.Context, input STKPushInput) (*STKPushResult, error) {
	if err := validateAmountCents(input.AmountCents); err != nil {
		return nil, err
	}
	c.log(ctx, "request", "stk_push", map[string]any{
		"phone":  input.Phone,
		"amount": input.AmountCents,
		"ref":    input.AccountReference,
	})

	payload := input.toRequest(c.shortCode, c.callbackURL)
	var resp stkPushResponse
	if err := c.post(ctx, stkPushPath, payload, &resp); err != nil {
		c.log(ctx, "error", "stk_push", map[string]any{"error": err.Error()})
		return nil, err
	}
	if resp.ResponseCode != "" && resp.ResponseCode != "0" {
		return nil, pkgerrors.New(pkgerrors.CodeProviderRejected, resp.ResponseDescription).
			WithDetails(map[string]any{"response_code": resp.ResponseCode})
	}

	c.log(ctx, "response", "stk_push", map[string]any{
		"checkout_request_id": resp.CheckoutRequestID,
	})
	return &STKPushResult{
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// STKQuery fetches the outcome of a previously pushed collection.
func (c *Client) STKQuery(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	if strings.TrimSpace(checkoutRequestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout request id required")
	}
	c.log(ctx, "request", "stk_query", map[string]any{"checkout_request_id": checkoutRequestID})

	payload := stkQueryRequest{
		BusinessShortCode: c.shortCode,
		CheckoutRequestID: checkoutRequestID,
	}
	var resp stkQueryResponse
	if err := c.post(ctx, stkQueryPath, payload, &resp); err != nil {
		c.log(ctx, "error", "stk_query", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "stk_query", map[string]any{
		"result_code": resp.ResultCode,
		"result_desc": resp.ResultDesc,
	})
	return &QueryResult{
		ResultCode:        resp.ResultCode,
		ResultDescription: resp.ResultDesc,
	}, nil
}

// B2CPayment pushes money to a recipient's handset.
func (c *Client) B2CPayment(ctx context.Context, input B2CInput) (*B2CResult, error) {
	if err := validateAmountCents(input.AmountCents); err != nil {
		return nil, err
	}
	c.log(ctx, "request", "b2c_payment", map[string]any{
		"phone":   input.Phone,
		"amount":  input.AmountCents,
		"purpose": input.Remarks,
	})

	payload := input.toRequest(c.shortCode, c.initiator, c.callbackURL)
	var resp b2cResponse
	if err := c.post(ctx, b2cPath, payload, &resp); err != nil {
		c.log(ctx, "error", "b2c_payment", map[string]any{"error": err.Error()})
		return nil, err
	}
	if resp.ResponseCode != "" && resp.ResponseCode != "0" {
		return nil, pkgerrors.New(pkgerrors.CodeProviderRejected, resp.ResponseDescription).
			WithDetails(map[string]any{"response_code": resp.ResponseCode})
	}

	c.log(ctx, "response", "b2c_payment", map[string]any{
		"conversation_id": resp.ConversationID,
	})
	return &B2CResult{
		ConversationID:           resp.ConversationID,
		OriginatorConversationID: resp.OriginatorConversationID,
	}, nil
}

// post walks the failover list, retrying transient failures with backoff. The
// first endpoint that answers is cached for subsequent calls.
func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode provider request")
	}

	var lastErr error
	for _, endpoint := range c.endpoints.ordered() {
		backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(250*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			return c.postOnce(ctx, endpoint.url, path, body, out)
		})
		if err == nil {
			c.endpoints.markHealthy(endpoint.index)
			return nil
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) {
			return err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = pkgerrors.New(pkgerrors.CodeProviderUnavailable, "no provider endpoint configured")
	}
	return lastErr
}

func (c *Client) postOnce(ctx context.Context, base, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "provider unreachable"))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "read provider response"))
	}

	switch {
	case resp.StatusCode >= 500:
		return retry.RetryableError(pkgerrors.New(pkgerrors.CodeProviderUnavailable,
			fmt.Sprintf("provider returned %d", resp.StatusCode)))
	case resp.StatusCode >= 400:
		return pkgerrors.New(pkgerrors.CodeProviderRejected, providerErrorMessage(raw, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProviderUnavailable, err, "decode provider response")
	}
	return nil
}

func providerErrorMessage(raw []byte, status int) string {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
		ErrorCode    string `json:"errorCode"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.ErrorMessage != "" {
		return body.ErrorMessage
	}
	return fmt.Sprintf("provider returned %d", status)
}

func (c *Client) log(ctx context.Context, stage, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	entry := map[string]any{"provider": "mpesa", "stage": stage, "operation": operation}
	for k, v := range fields {
		entry[k] = v
	}
	c.logger.Info(c.logger.WithFields(ctx, entry), "mpesa "+operation)
}
