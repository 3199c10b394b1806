package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const OrderStatusPlaced OrderStatus = "placed"

// Order is created from a settled payment and keeps its own copy of the amounts,
// so later refunds on the payment do not change what the order displays.
type Order struct {
	ID        string
	PaymentID string
	UserID    string
	Items     []LineItem
	Amount    decimal.Decimal
	Currency  Currency
	Market    Market
	Status    OrderStatus
	CreatedAt time.Time
}

// NewOrderFromPayment snapshots a settled payment into an order.
func NewOrderFromPayment(id string, p *Payment, now time.Time) (*Order, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("order ID")
	}
	if !p.IsSettled() {
		return nil, NewInvalidTransitionError(p.Status, StatusCompleted)
	}

	items := make([]LineItem, len(p.Items))
	copy(items, p.Items)

	return &Order{
		ID:        id,
		PaymentID: p.ID,
		UserID:    p.UserID,
		Items:     items,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Market:    p.Market,
		Status:    OrderStatusPlaced,
		CreatedAt: now,
	}, nil
}
