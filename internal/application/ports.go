package application

import (
	"context"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
)

// GatewayClient is the port for the asynchronous payment processor (PayPal).
type GatewayClient interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error)
	CaptureOrder(ctx context.Context, gatewayOrderID string) (*CaptureResult, error)
	GetOrder(ctx context.Context, gatewayOrderID string) (*CaptureResult, error)
}

// WebhookVerifier checks that a webhook delivery really came from the processor.
type WebhookVerifier interface {
	VerifyWebhookSignature(ctx context.Context, v WebhookVerification) (bool, error)
}

// CardAuthorizer runs the synchronous card authorization.
type CardAuthorizer interface {
	Authorize(ctx context.Context, req CardAuthorizationRequest) (*CardAuthorization, error)
}

// PaymentRepository is the port for persistence.
// UpdateIfStatus writes only when the stored status and version still match what was
// loaded, and returns domain.ErrConcurrentModification otherwise.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error)
	FindByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error)
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Payment, error)
	FindStalePending(ctx context.Context, gateway domain.Gateway, createdBefore time.Time, limit int) ([]*domain.Payment, error)
	UpdateIfStatus(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error
	LinkOrder(ctx context.Context, paymentID, orderID string) error
}

// OrderRepository stores at most one order per payment. CreateOrGet returns the stored
// order when one already exists for the payment.
type OrderRepository interface {
	CreateOrGet(ctx context.Context, order *domain.Order) (*domain.Order, error)
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
}

type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

type WebhookEventStore interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) error
}

// IdempotencyRecord is what a reserved Create key points to. PaymentID is empty while in flight.
type IdempotencyRecord struct {
	RequestHash string `json:"request_hash"`
	PaymentID   string `json:"payment_id,omitempty"`
}

// IdempotencyStore guards Create against client retries. Reserve returns the existing
// record and false when the key is already taken.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key, requestHash string) (*IdempotencyRecord, bool, error)
	Complete(ctx context.Context, key, requestHash, paymentID string) error
	Release(ctx context.Context, key string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
}

type Metrics interface {
	PaymentCreated(gateway, market string)
	CaptureObserved(outcome string)
	WebhookObserved(eventType, outcome string)
	RefundObserved(outcome string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) PaymentCreated(string, string)  {}
func (NoopMetrics) CaptureObserved(string)         {}
func (NoopMetrics) WebhookObserved(string, string) {}
func (NoopMetrics) RefundObserved(string)          {}
