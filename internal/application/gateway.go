package application

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
)

// GatewayError is a structured rejection from the payment processor.
type GatewayError struct {
	Name       string
	Issue      string
	Message    string
	DebugID    string
	StatusCode int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error [%s]: %s (status: %d)", e.Code(), e.Message, e.StatusCode)
}

// Code prefers the detailed issue over the generic error name.
func (e *GatewayError) Code() string {
	if e.Issue != "" {
		return e.Issue
	}
	if e.Name != "" {
		return e.Name
	}
	return "UPSTREAM_ERROR"
}

func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

var alreadyProcessedIssues = []string{
	"ORDER_ALREADY_CAPTURED",
	"ORDER_ALREADY_VOIDED",
	"ORDER_COMPLETED_OR_VOIDED",
	"ORDER_ALREADY_COMPLETED",
}

// IsAlreadyProcessed reports the "already captured or voided" rejection.
func (e *GatewayError) IsAlreadyProcessed() bool {
	return slices.Contains(alreadyProcessedIssues, strings.ToUpper(e.Issue))
}

var declineIssues = []string{
	"INSTRUMENT_DECLINED",
	"TRANSACTION_REFUSED",
	"PAYEE_ACCOUNT_RESTRICTED",
	"PAYER_ACCOUNT_RESTRICTED",
	"PAYER_CANNOT_PAY",
	"MAX_NUMBER_OF_PAYMENT_ATTEMPTS_EXCEEDED",
}

// IsDeclined reports a rejection of the funding source itself. Other 4xx
// rejections (approval missing, bad credentials, unknown order) say nothing
// about whether the buyer can still pay.
func (e *GatewayError) IsDeclined() bool {
	return slices.Contains(declineIssues, strings.ToUpper(e.Issue))
}

func IsGatewayError(err error) (*GatewayError, bool) {
	var gwErr *GatewayError
	ok := errors.As(err, &gwErr)
	return gwErr, ok
}

type CreateOrderRequest struct {
	ReferenceID string
	Amount      decimal.Decimal
	Currency    domain.Currency
	Description string
	BrandName   string
	ReturnURL   string
	CancelURL   string
}

type GatewayOrder struct {
	ID     string
	Status string
	Links  []domain.Link
}

// Capture statuses reported by PayPal.
const (
	CaptureStatusCompleted = "COMPLETED"
	CaptureStatusPending   = "PENDING"
	CaptureStatusDeclined  = "DECLINED"
	CaptureStatusFailed    = "FAILED"
)

// CaptureResult describes an order and, once captured, its capture.
type CaptureResult struct {
	OrderID       string
	OrderStatus   string
	CaptureID     string
	CaptureStatus string
	StatusReason  string
	Amount        decimal.Decimal
	Currency      domain.Currency
	Payer         *domain.PayerInfo
}

func (r *CaptureResult) IsCaptured() bool {
	return r.CaptureID != ""
}

// WebhookVerification carries the transmission headers and the raw body to verify.
type WebhookVerification struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
	Body             []byte
}

type CardDetails struct {
	Number      string `json:"number" validate:"required,numeric,min=12,max=19"`
	ExpiryMonth int    `json:"expiryMonth" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiryYear" validate:"required,min=2000"`
	CVV         string `json:"cvv" validate:"required,numeric,min=3,max=4"`
	HolderName  string `json:"holderName" validate:"required"`
}

func (c CardDetails) Last4() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

// Brand guesses the card network from the leading digits.
func (c CardDetails) Brand() string {
	switch {
	case strings.HasPrefix(c.Number, "4"):
		return "visa"
	case strings.HasPrefix(c.Number, "5"):
		return "mastercard"
	case strings.HasPrefix(c.Number, "34"), strings.HasPrefix(c.Number, "37"):
		return "amex"
	default:
		return "unknown"
	}
}

type CardAuthorizationRequest struct {
	Amount   decimal.Decimal
	Currency domain.Currency
	Card     CardDetails
}

type CardAuthorization struct {
	Approved          bool
	TransactionID     string
	AuthorizationCode string
	DeclineCode       string
	Message           string
}
