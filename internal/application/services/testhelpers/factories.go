package testhelpers

import (
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const TestUserID = "user-1"

// Now is the fixed clock used across service tests.
var Now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func Clock() time.Time { return Now }

// DefaultCreatePayPalCommand returns a valid 100.00 GBP PayPal checkout.
func DefaultCreatePayPalCommand() services.CreatePayPalPaymentCommand {
	return services.CreatePayPalPaymentCommand{
		UserID:   TestUserID,
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "GBP",
		Market:   "GB",
		Items: []domain.LineItem{
			{ProductID: "prod-1", Name: "Teapot", Quantity: 2, UnitPrice: decimal.RequireFromString("50.00")},
		},
	}
}

func DefaultChargeCardCommand() services.ChargeCardCommand {
	return services.ChargeCardCommand{
		UserID:   TestUserID,
		Amount:   decimal.RequireFromString("100.00"),
		Currency: "GBP",
		Market:   "GB",
		Items: []domain.LineItem{
			{ProductID: "prod-1", Name: "Teapot", Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")},
		},
		Card: application.CardDetails{
			Number:      "4111111111111111",
			ExpiryMonth: 12,
			ExpiryYear:  2030,
			CVV:         "123",
			HolderName:  "Ada Lovelace",
		},
		BillingAddress: domain.BillingAddress{
			Line1:      "1 High Street",
			City:       "London",
			PostalCode: "SW1A 1AA",
			Country:    "GB",
		},
	}
}

// ApprovedOrder is what PayPal returns for a freshly created order.
func ApprovedOrder(gatewayOrderID string) *application.GatewayOrder {
	return &application.GatewayOrder{
		ID:     gatewayOrderID,
		Status: "CREATED",
		Links: []domain.Link{
			{Href: "https://api.sandbox.paypal.com/v2/checkout/orders/" + gatewayOrderID, Rel: "self", Method: "GET"},
			{Href: "https://www.sandbox.paypal.com/checkoutnow?token=" + gatewayOrderID, Rel: "approve", Method: "GET"},
		},
	}
}

func CompletedCapture(gatewayOrderID, captureID string) *application.CaptureResult {
	return &application.CaptureResult{
		OrderID:       gatewayOrderID,
		OrderStatus:   "COMPLETED",
		CaptureID:     captureID,
		CaptureStatus: application.CaptureStatusCompleted,
		Amount:        decimal.RequireFromString("127.00"),
		Currency:      domain.CurrencyUSD,
		Payer:         &domain.PayerInfo{PayerID: "PAYER1", Email: "buyer@example.com"},
	}
}

// NewPendingPayPalPayment builds a pending 100.00 GBP PayPal payment linked to gatewayOrderID.
func NewPendingPayPalPayment(t *testing.T, gatewayOrderID string) *domain.Payment {
	t.Helper()

	amount := decimal.RequireFromString("100.00")
	p, err := domain.NewPayment(domain.NewPaymentParams{
		ID:            uuid.NewString(),
		UserID:        TestUserID,
		Amount:        amount,
		Currency:      domain.CurrencyGBP,
		Market:        domain.MarketGB,
		PaymentMethod: domain.MethodPayPal,
		Gateway:       domain.GatewayPayPal,
		Now:           Now,
	})
	require.NoError(t, err)

	settlement, err := domain.ConvertToSettlement(amount, domain.CurrencyGBP)
	require.NoError(t, err)

	p.AttachGatewayOrder(gatewayOrderID, &domain.PayPalData{
		OriginalAmount:     amount,
		OriginalCurrency:   domain.CurrencyGBP,
		SettlementAmount:   settlement,
		SettlementCurrency: domain.SettlementCurrency,
		ApprovalURL:        "https://www.sandbox.paypal.com/checkoutnow?token=" + gatewayOrderID,
	})
	p.Version = 1
	return p
}

// NewCompletedPayPalPayment is a pending PayPal payment captured as captureID.
func NewCompletedPayPalPayment(t *testing.T, gatewayOrderID, captureID string) *domain.Payment {
	t.Helper()

	p := NewPendingPayPalPayment(t, gatewayOrderID)
	require.NoError(t, p.Complete(captureID, "Captured via PayPal", Now))
	return p
}

// NewCompletedCardPayment is a settled card payment of amount (GBP, GB market).
func NewCompletedCardPayment(t *testing.T, amount string) *domain.Payment {
	t.Helper()

	p, err := domain.NewPayment(domain.NewPaymentParams{
		ID:            uuid.NewString(),
		UserID:        TestUserID,
		Amount:        decimal.RequireFromString(amount),
		Currency:      domain.CurrencyGBP,
		Market:        domain.MarketGB,
		PaymentMethod: domain.MethodCard,
		Gateway:       domain.GatewayCardSimulator,
		GatewayData:   &domain.CardData{Last4: "1111", Brand: "visa"},
		Now:           Now,
	})
	require.NoError(t, err)
	require.NoError(t, p.Complete("card_"+uuid.NewString(), "Card charge approved", Now))
	p.Version = 1
	return p
}
