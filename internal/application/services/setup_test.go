package services_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services/testhelpers"
)

type harness struct {
	payments    *testhelpers.PaymentStore
	orders      *testhelpers.OrderStore
	users       *testhelpers.UserDirectory
	events      *testhelpers.WebhookEventStore
	idempotency *testhelpers.IdempotencyStore
	publisher   *testhelpers.RecordingPublisher
	gateway     *testhelpers.MockGateway
	logger      *slog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		payments:    testhelpers.NewPaymentStore(),
		orders:      testhelpers.NewOrderStore(),
		users:       testhelpers.NewUserDirectory(testhelpers.TestUserID),
		events:      testhelpers.NewWebhookEventStore(),
		idempotency: testhelpers.NewIdempotencyStore(),
		publisher:   &testhelpers.RecordingPublisher{},
		gateway:     testhelpers.NewMockGateway(t),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (h *harness) options() []services.Option {
	return []services.Option{
		services.WithClock(testhelpers.Clock),
		services.WithPublisher(h.publisher),
	}
}

func (h *harness) checkout(card *testhelpers.CardAuthorizer) *services.CheckoutService {
	return services.NewCheckoutService(
		h.payments,
		h.orders,
		h.users,
		h.gateway,
		card,
		h.idempotency,
		services.CheckoutConfig{
			BrandName: "FicMart",
			ReturnURL: "https://ficmart.example/checkout/return",
			CancelURL: "https://ficmart.example/checkout/cancel",
		},
		h.logger,
		h.options()...,
	)
}

func (h *harness) capture() *services.CaptureService {
	return services.NewCaptureService(h.payments, h.orders, h.gateway, h.logger, h.options()...)
}

func (h *harness) webhooks() *services.WebhookService {
	return services.NewWebhookService(h.payments, h.orders, h.events, h.logger, h.options()...)
}

func (h *harness) refunds() *services.RefundService {
	return services.NewRefundService(h.payments, h.logger, h.options()...)
}
