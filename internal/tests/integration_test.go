package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/api"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services/testhelpers"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/card"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/paypal"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest/middleware"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/worker"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// fakePayPal answers the handful of PayPal endpoints the service calls. Every order
// is approved and captures settle immediately at 127.00 USD.
type fakePayPal struct {
	*httptest.Server
	orders   atomic.Int32
	captures atomic.Int32
	// orderStatus overrides GET /v2/checkout/orders/{id}
	orderStatus atomic.Value
}

func newFakePayPal() *fakePayPal {
	f := &fakePayPal{}
	f.orderStatus.Store("CREATED")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "token", "token_type": "Bearer", "expires_in": 32400})
	})
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, _ *http.Request) {
		id := fmt.Sprintf("ORDER-%d", f.orders.Add(1))
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":     id,
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://www.sandbox.paypal.com/checkoutnow?token=" + id, "rel": "approve", "method": "GET"},
			},
		})
	})
	mux.HandleFunc("POST /v2/checkout/orders/{id}/capture", func(w http.ResponseWriter, r *http.Request) {
		f.captures.Add(1)
		writeJSON(w, http.StatusCreated, completedOrder(r.PathValue("id")))
	})
	mux.HandleFunc("GET /v2/checkout/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     r.PathValue("id"),
			"status": f.orderStatus.Load().(string),
		})
	})
	mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"verification_status": "SUCCESS"})
	})

	f.Server = httptest.NewServer(mux)
	return f
}

func completedOrder(id string) map[string]any {
	return map[string]any{
		"id":     id,
		"status": "COMPLETED",
		"payer":  map[string]any{"payer_id": "PAYER1", "email_address": "buyer@example.com"},
		"purchase_units": []map[string]any{{
			"reference_id": "ref",
			"payments": map[string]any{"captures": []map[string]any{{
				"id":     "CAP-" + id,
				"status": "COMPLETED",
				"amount": map[string]string{"currency_code": "USD", "value": "127.00"},
			}}},
		}},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type IntegrationTestSuite struct {
	suite.Suite
	testDB      *testhelpers.TestDatabase
	paypal      *fakePayPal
	paymentRepo *postgres.PaymentRepository
	capture     *services.CaptureService
	router      http.Handler
	logger      *slog.Logger
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (suite *IntegrationTestSuite) SetupSuite() {
	suite.testDB = testhelpers.SetupTestDatabase(suite.T())
	suite.paypal = newFakePayPal()
	suite.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	db := suite.testDB.DB
	suite.paymentRepo = postgres.NewPaymentRepository(db)
	orderRepo := postgres.NewOrderRepository(db)

	paypalClient := paypal.NewClient(config.PayPalConfig{
		BaseURL:      suite.paypal.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		WebhookID:    "WH-CONFIG",
		Timeout:      5 * time.Second,
	}, suite.logger)
	gateway := paypal.NewRetryClient(paypalClient, config.RetryConfig{BaseDelay: 1, MaxRetries: 2}, suite.logger)
	cards := card.NewSimulator(config.CardConfig{ApprovalRate: 1}, suite.logger, card.WithSeed(7))

	checkout := services.NewCheckoutService(
		suite.paymentRepo,
		orderRepo,
		postgres.NewUserRepository(db),
		gateway,
		cards,
		nil,
		services.CheckoutConfig{
			BrandName: "FicMart",
			ReturnURL: "https://ficmart.example/checkout/return",
			CancelURL: "https://ficmart.example/checkout/cancel",
		},
		suite.logger,
	)
	suite.capture = services.NewCaptureService(suite.paymentRepo, orderRepo, gateway, suite.logger)

	h := handlers.NewHandlers(
		checkout,
		suite.capture,
		services.NewWebhookService(suite.paymentRepo, orderRepo, postgres.NewWebhookEventRepository(db), suite.logger),
		services.NewRefundService(suite.paymentRepo, suite.logger),
		services.NewQueryService(suite.paymentRepo, orderRepo),
		suite.logger,
	)
	doc, err := api.Load()
	suite.Require().NoError(err)
	validator, err := middleware.NewRequestValidator(doc)
	suite.Require().NoError(err)

	suite.router = handlers.NewRouter(h, handlers.RouterConfig{
		Logger:         suite.logger,
		RequestTimeout: 10 * time.Second,
		Verifier:       paypalClient,
		DB:             db,
		Validator:      validator,
	})
}

func (suite *IntegrationTestSuite) TearDownSuite() {
	suite.paypal.Close()
	suite.testDB.Cleanup(suite.T())
}

func (suite *IntegrationTestSuite) SetupTest() {
	suite.testDB.CleanTables(suite.T())
	suite.testDB.SeedUser(suite.T(), testhelpers.TestUserID)
	suite.paypal.orderStatus.Store("CREATED")
	suite.paypal.captures.Store(0)
}

func (suite *IntegrationTestSuite) call(method, path string, body any, headers map[string]string) (int, json.RawMessage) {
	t := suite.T()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env.Data
}

func user() map[string]string {
	return map[string]string{middleware.UserIDHeader: testhelpers.TestUserID}
}

func admin() map[string]string {
	return map[string]string{middleware.UserIDHeader: "admin-1", middleware.UserRoleHeader: middleware.RoleAdmin}
}

func (suite *IntegrationTestSuite) countRows(table string) int {
	var n int
	require.NoError(suite.T(), suite.testDB.DB.Pool.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// ==== PayPal ====

func (suite *IntegrationTestSuite) createPayPalPayment() string {
	t := suite.T()

	status, data := suite.call(http.MethodPost, "/api/v1/payments/paypal", testhelpers.DefaultCreatePayPalCommand(), user())
	require.Equal(t, http.StatusCreated, status, string(data))

	var created struct {
		PaymentID   string `json:"paymentId"`
		ApprovalURL string `json:"approvalUrl"`
	}
	require.NoError(t, json.Unmarshal(data, &created))
	require.NotEmpty(t, created.ApprovalURL)

	p, err := suite.paymentRepo.FindByID(context.Background(), created.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, p.GatewayOrderID)
	return *p.GatewayOrderID
}

func (suite *IntegrationTestSuite) Test_PayPalCreateAndCapture() {
	t := suite.T()
	gatewayOrderID := suite.createPayPalPayment()

	status, data := suite.call(http.MethodPost, "/api/v1/payments/paypal/"+gatewayOrderID+"/capture", nil, user())
	require.Equal(t, http.StatusOK, status, string(data))

	var result struct {
		Payment struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"payment"`
		Order *struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, string(domain.StatusCompleted), result.Payment.Status)
	require.NotNil(t, result.Order)

	// a second capture is answered from the stored state
	status, data = suite.call(http.MethodPost, "/api/v1/payments/paypal/"+gatewayOrderID+"/capture", nil, user())
	require.Equal(t, http.StatusOK, status, string(data))
	var replay struct {
		Order *struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(data, &replay))
	require.NotNil(t, replay.Order)
	assert.Equal(t, result.Order.ID, replay.Order.ID)
	assert.Equal(t, 1, suite.countRows("orders"))

	status, _ = suite.call(http.MethodGet, "/api/v1/payments/"+result.Payment.ID, nil, user())
	assert.Equal(t, http.StatusOK, status)
}

func (suite *IntegrationTestSuite) Test_ConcurrentCaptures() {
	t := suite.T()
	gatewayOrderID := suite.createPayPalPayment()

	const numRequests = 5
	var wg sync.WaitGroup
	codes := make(chan int, numRequests)

	for range numRequests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := suite.call(http.MethodPost, "/api/v1/payments/paypal/"+gatewayOrderID+"/capture", nil, user())
			codes <- status
		}()
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, code)
	}

	p, err := suite.paymentRepo.FindByGatewayOrderID(context.Background(), gatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, 1, suite.countRows("orders"))

	completions := 0
	for _, change := range p.StatusHistory {
		if change.Status == domain.StatusCompleted {
			completions++
		}
	}
	assert.Equal(t, 1, completions)
}

func (suite *IntegrationTestSuite) Test_WebhookRedelivery() {
	t := suite.T()
	gatewayOrderID := suite.createPayPalPayment()

	body := fmt.Sprintf(`{
		"id": "WH-%s",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-%s",
			"status": "COMPLETED",
			"amount": {"currency_code": "USD", "value": "127.00"},
			"supplementary_data": {"related_ids": {"order_id": %q}}
		}
	}`, uuid.NewString(), gatewayOrderID, gatewayOrderID)
	headers := map[string]string{
		"PAYPAL-TRANSMISSION-ID":  "T-1",
		"PAYPAL-TRANSMISSION-SIG": "sig",
	}

	for range 2 {
		status, data := suite.call(http.MethodPost, "/api/v1/webhooks/paypal", body, headers)
		require.Equal(t, http.StatusOK, status, string(data))
	}

	p, err := suite.paymentRepo.FindByGatewayOrderID(context.Background(), gatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Len(t, p.StatusHistory, 2)
	assert.Equal(t, 1, suite.countRows("webhook_events"))
	assert.Equal(t, 1, suite.countRows("orders"))
	assert.Zero(t, suite.paypal.captures.Load())
}

// ==== Card and refunds ====

func (suite *IntegrationTestSuite) Test_CardChargeAndRefunds() {
	t := suite.T()

	status, data := suite.call(http.MethodPost, "/api/v1/payments/card", testhelpers.DefaultChargeCardCommand(), user())
	require.Equal(t, http.StatusCreated, status, string(data))

	var charged struct {
		Payment struct {
			ID        string `json:"id"`
			NetAmount string `json:"netAmount"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(data, &charged))
	assert.Equal(t, "96.80", charged.Payment.NetAmount)
	paymentID := charged.Payment.ID

	for _, step := range []struct {
		amount string
		status domain.PaymentStatus
	}{
		{"50.00", domain.StatusPartiallyRefunded},
		{"30.00", domain.StatusPartiallyRefunded},
		{"20.00", domain.StatusRefunded},
	} {
		status, data := suite.call(http.MethodPost, "/api/v1/payments/"+paymentID+"/refunds",
			map[string]string{"amount": step.amount, "reason": "customer request"}, admin())
		require.Equal(t, http.StatusOK, status, string(data))

		var body struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, string(step.status), body.Status, step.amount)
	}

	status, _ = suite.call(http.MethodPost, "/api/v1/payments/"+paymentID+"/refunds",
		map[string]string{"amount": "0.01"}, admin())
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	p, err := suite.paymentRepo.FindByID(context.Background(), paymentID)
	require.NoError(t, err)
	assert.True(t, p.TotalRefunded.Equal(decimal.RequireFromString("100")))
	assert.Len(t, p.Refunds, 3)
	assert.Equal(t, 3, suite.countRows("payment_refunds"))
}

// ==== Expiration ====

func (suite *IntegrationTestSuite) Test_ExpirationWorkerCancelsUnapprovedOrders() {
	t := suite.T()
	ctx := context.Background()

	stale := testhelpers.NewPendingPayPalPayment(t, "ORDER-STALE")
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)
	stale.UpdatedAt = stale.CreatedAt
	require.NoError(t, suite.paymentRepo.Create(ctx, stale))

	fresh := testhelpers.NewPendingPayPalPayment(t, "ORDER-FRESH")
	fresh.CreatedAt = time.Now()
	fresh.UpdatedAt = fresh.CreatedAt
	require.NoError(t, suite.paymentRepo.Create(ctx, fresh))

	w := worker.NewExpirationWorker(suite.paymentRepo, suite.capture, time.Minute, 30*time.Minute, 10, suite.logger)
	assert.Equal(t, 1, w.RunOnce(ctx))

	p, err := suite.paymentRepo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, p.Status)

	p, err = suite.paymentRepo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, p.Status)
}

func (suite *IntegrationTestSuite) Test_ExpirationWorkerCapturesApprovedOrders() {
	t := suite.T()
	ctx := context.Background()
	suite.paypal.orderStatus.Store("APPROVED")

	stale := testhelpers.NewPendingPayPalPayment(t, "ORDER-APPROVED")
	stale.CreatedAt = time.Now().Add(-2 * time.Hour)
	stale.UpdatedAt = stale.CreatedAt
	require.NoError(t, suite.paymentRepo.Create(ctx, stale))

	w := worker.NewExpirationWorker(suite.paymentRepo, suite.capture, time.Minute, 30*time.Minute, 10, suite.logger)
	w.RunOnce(ctx)

	p, err := suite.paymentRepo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, 1, suite.countRows("orders"))
}
