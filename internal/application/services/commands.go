package services

import (
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
)

type CreatePayPalPaymentCommand struct {
	UserID    string            `json:"userId" validate:"required"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency" validate:"required,len=3"`
	Market    string            `json:"market" validate:"omitempty,len=2"`
	Items     []domain.LineItem `json:"items" validate:"dive"`
	Breakdown *domain.Breakdown `json:"breakdown,omitempty"`
	ReturnURL string            `json:"returnUrl,omitempty" validate:"omitempty,url"`
	CancelURL string            `json:"cancelUrl,omitempty" validate:"omitempty,url"`
}

type ChargeCardCommand struct {
	UserID         string                  `json:"userId" validate:"required"`
	Amount         decimal.Decimal         `json:"amount"`
	Currency       string                  `json:"currency" validate:"required,len=3"`
	Market         string                  `json:"market" validate:"omitempty,len=2"`
	Items          []domain.LineItem       `json:"items" validate:"dive"`
	Breakdown      *domain.Breakdown       `json:"breakdown,omitempty"`
	Card           application.CardDetails `json:"card"`
	BillingAddress domain.BillingAddress   `json:"billingAddress"`
}

type CaptureCommand struct {
	GatewayOrderID string `validate:"required"`
	UserID         string `validate:"required"`
}

type RefundCommand struct {
	PaymentID   string `validate:"required"`
	Amount      decimal.Decimal
	Reason      string `validate:"max=500"`
	PerformedBy string `validate:"required"`
}

// CheckoutResult is a settled payment together with the order created from it.
// Order is nil while a capture is still pending at the gateway.
type CheckoutResult struct {
	Payment *domain.Payment
	Order   *domain.Order
}

// PayPalCheckout is a pending PayPal payment and the URL the buyer approves it at.
type PayPalCheckout struct {
	Payment     *domain.Payment
	ApprovalURL string
}
