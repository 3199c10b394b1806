package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventPaymentCreated   EventType = "payment.created.v1"
	EventPaymentCompleted EventType = "payment.completed.v1"
	EventPaymentFailed    EventType = "payment.failed.v1"
	EventPaymentRefunded  EventType = "payment.refunded.v1"
	EventPaymentCancelled EventType = "payment.cancelled.v1"
)

// PaymentEvent is the lifecycle notification published for other marketplace services.
type PaymentEvent struct {
	Type          EventType       `json:"type"`
	PaymentID     string          `json:"paymentId"`
	UserID        string          `json:"userId"`
	OrderID       string          `json:"orderId,omitempty"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency"`
	TotalRefunded decimal.Decimal `json:"totalRefunded"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func NewPaymentEvent(eventType EventType, p *Payment, now time.Time) PaymentEvent {
	e := PaymentEvent{
		Type:          eventType,
		PaymentID:     p.ID,
		UserID:        p.UserID,
		Status:        p.Status,
		Amount:        p.Amount,
		Currency:      p.Currency,
		TotalRefunded: p.TotalRefunded,
		OccurredAt:    now,
	}
	if p.OrderID != nil {
		e.OrderID = *p.OrderID
	}
	return e
}
