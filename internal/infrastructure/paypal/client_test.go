package paypal_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/paypal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	*httptest.Server
	tokenCalls atomic.Int32
	handler    http.HandlerFunc
}

func newFakePayPal(t *testing.T, handler http.HandlerFunc) *fakePayPal {
	t.Helper()
	f := &fakePayPal{handler: handler}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
				return
			}
			n := f.tokenCalls.Add(1)
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "token-" + string(rune('0'+n)),
				"token_type":   "Bearer",
				"expires_in":   32400,
			})
			return
		}
		f.handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(baseURL string, opts ...paypal.Option) *paypal.Client {
	cfg := config.PayPalConfig{
		BaseURL:      baseURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		WebhookID:    "WH-CONFIG",
		Timeout:      5 * time.Second,
	}
	return paypal.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

const completedOrder = `{
	"id": "ORDER-1",
	"status": "COMPLETED",
	"payer": {"payer_id": "PAYER1", "email_address": "buyer@example.com", "name": {"given_name": "Ada", "surname": "Lovelace"}},
	"purchase_units": [{
		"reference_id": "pay-1",
		"payments": {"captures": [{"id": "CAP-1", "status": "COMPLETED", "amount": {"currency_code": "USD", "value": "127.00"}}]}
	}],
	"links": [{"href": "https://api.sandbox.paypal.com/v2/checkout/orders/ORDER-1", "rel": "self", "method": "GET"}]
}`

func TestClient_CreateOrder(t *testing.T) {
	var got map[string]any
	var requestID, auth string

	fake := newFakePayPal(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/checkout/orders", r.URL.Path)
		requestID = r.Header.Get("PayPal-Request-Id")
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		writeJSON(w, http.StatusCreated, map[string]any{
			"id":     "ORDER-1",
			"status": "PAYER_ACTION_REQUIRED",
			"links": []map[string]string{
				{"href": "https://api.sandbox.paypal.com/v2/checkout/orders/ORDER-1", "rel": "self", "method": "GET"},
				{"href": "https://www.sandbox.paypal.com/checkoutnow?token=ORDER-1", "rel": "payer-action", "method": "GET"},
			},
		})
	})

	order, err := newClient(fake.URL).CreateOrder(context.Background(), application.CreateOrderRequest{
		ReferenceID: "pay-1",
		Amount:      decimal.RequireFromString("127"),
		Currency:    domain.CurrencyUSD,
		BrandName:   "FicMart",
		ReturnURL:   "https://ficmart.example/return",
		CancelURL:   "https://ficmart.example/cancel",
	})
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", order.ID)
	href, ok := domain.ApprovalLink(order.Links)
	require.True(t, ok)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=ORDER-1", href)

	assert.Equal(t, "create-pay-1", requestID)
	assert.Equal(t, "Bearer token-1", auth)
	assert.Equal(t, "CAPTURE", got["intent"])
	unit := got["purchase_units"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"currency_code": "USD", "value": "127.00"}, unit["amount"])
}

func TestClient_CaptureOrder(t *testing.T) {
	var requestID string
	fake := newFakePayPal(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/checkout/orders/ORDER-1/capture", r.URL.Path)
		requestID = r.Header.Get("PayPal-Request-Id")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(completedOrder))
	})

	var observed []string
	client := newClient(fake.URL, paypal.WithObserver(func(op, outcome string, _ time.Duration) {
		observed = append(observed, op+":"+outcome)
	}))

	result, err := client.CaptureOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)

	assert.Equal(t, "ORDER-1", requestID)
	assert.Equal(t, "CAP-1", result.CaptureID)
	assert.Equal(t, application.CaptureStatusCompleted, result.CaptureStatus)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("127")))
	assert.Equal(t, domain.CurrencyUSD, result.Currency)
	require.NotNil(t, result.Payer)
	assert.Equal(t, "PAYER1", result.Payer.PayerID)
	assert.Equal(t, "Lovelace", result.Payer.Surname)
	assert.Equal(t, []string{"capture_order:success"}, observed)
}

func TestClient_GetOrderBeforeCapture(t *testing.T) {
	fake := newFakePayPal(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, map[string]any{"id": "ORDER-1", "status": "APPROVED"})
	})

	result, err := newClient(fake.URL).GetOrder(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", result.OrderStatus)
	assert.False(t, result.IsCaptured())
}

func TestClient_Errors(t *testing.T) {
	t.Run("structured rejection", func(t *testing.T) {
		fake := newFakePayPal(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"name":     "UNPROCESSABLE_ENTITY",
				"message":  "The requested action could not be performed.",
				"debug_id": "dbg-1",
				"details":  []map[string]string{{"issue": "ORDER_ALREADY_CAPTURED", "description": "Order already captured."}},
			})
		})

		_, err := newClient(fake.URL).CaptureOrder(context.Background(), "ORDER-1")
		gwErr, ok := application.IsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, "ORDER_ALREADY_CAPTURED", gwErr.Issue)
		assert.Equal(t, "dbg-1", gwErr.DebugID)
		assert.Equal(t, 422, gwErr.StatusCode)
		assert.True(t, gwErr.IsAlreadyProcessed())
	})

	t.Run("unstructured outage", func(t *testing.T) {
		fake := newFakePayPal(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		})

		_, err := newClient(fake.URL).GetOrder(context.Background(), "ORDER-1")
		gwErr, ok := application.IsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, 502, gwErr.StatusCode)
		assert.True(t, application.IsRetryable(err))
	})

	t.Run("bad credentials", func(t *testing.T) {
		fake := newFakePayPal(t, func(http.ResponseWriter, *http.Request) {
			t.Error("api must not be called without a token")
		})
		cfg := config.PayPalConfig{BaseURL: fake.URL, ClientID: "wrong", ClientSecret: "x", Timeout: time.Second}
		client := paypal.NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

		_, err := client.GetOrder(context.Background(), "ORDER-1")
		gwErr, ok := application.IsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, "invalid_client", gwErr.Name)
		assert.Equal(t, 502, application.ToHTTPStatus(err))
	})
}

func TestClient_TokenIsCachedAndRenewedOn401(t *testing.T) {
	var calls atomic.Int32
	fake := newFakePayPal(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n == 2 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"name": "AUTHENTICATION_FAILURE", "message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "ORDER-1", "status": "APPROVED"})
	})

	client := newClient(fake.URL)
	ctx := context.Background()

	_, err := client.GetOrder(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.tokenCalls.Load())

	_, err = client.GetOrder(ctx, "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.tokenCalls.Load())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_VerifyWebhookSignature(t *testing.T) {
	var got map[string]any
	fake := newFakePayPal(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/notifications/verify-webhook-signature", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		status := "FAILURE"
		if got["transmission_sig"] == "good" {
			status = "SUCCESS"
		}
		writeJSON(w, http.StatusOK, map[string]string{"verification_status": status})
	})
	client := newClient(fake.URL)
	body := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`)

	ok, err := client.VerifyWebhookSignature(context.Background(), application.WebhookVerification{
		TransmissionID:   "tx-1",
		TransmissionTime: "2026-03-01T12:00:00Z",
		TransmissionSig:  "good",
		CertURL:          "https://api.paypal.com/cert",
		AuthAlgo:         "SHA256withRSA",
		Body:             body,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "WH-CONFIG", got["webhook_id"])
	assert.Equal(t, "WH-1", got["webhook_event"].(map[string]any)["id"])

	ok, err = client.VerifyWebhookSignature(context.Background(), application.WebhookVerification{
		TransmissionSig: "forged",
		Body:            body,
	})
	require.NoError(t, err)
	assert.False(t, ok)
}
