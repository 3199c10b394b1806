package postgres

import (
	"encoding/json"
	"time"
)

// Numeric columns are selected as text so they round-trip through decimal.Decimal exactly.

type PaymentModel struct {
	ID                   string
	OrderID              *string
	UserID               string
	Amount               string
	Currency             string
	Market               string
	Subtotal             string
	TaxAmount            string
	ShippingAmount       string
	DiscountAmount       string
	Items                []byte
	PaymentMethod        string
	Gateway              string
	GatewayOrderID       *string
	GatewayTransactionID *string
	FeePercentage        string
	FeeFixed             string
	FeeTotal             string
	GatewayData          []byte
	Status               string
	TotalRefunded        string
	Failure              []byte
	PaidAt               *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Version              int64
}

type StatusChangeModel struct {
	PaymentID   string
	Seq         int
	Status      string
	Reason      string
	PerformedBy string
	CreatedAt   time.Time
}

type RefundModel struct {
	PaymentID       string
	Seq             int
	ID              string
	Amount          string
	Currency        string
	Reason          string
	Status          string
	GatewayRefundID *string
	ProcessedAt     time.Time
}

type OrderModel struct {
	ID        string
	PaymentID string
	UserID    string
	Items     []byte
	Amount    string
	Currency  string
	Market    string
	Status    string
	CreatedAt time.Time
}

// gatewayDataEnvelope tags the JSONB column with the processor that wrote it.
type gatewayDataEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
