// Package domain holds the payment aggregate, its status machine and the fee schedule.
package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the current state of a payment in its lifecycle
type PaymentStatus string

const (
	StatusPending           PaymentStatus = "pending"
	StatusProcessing        PaymentStatus = "processing"
	StatusAuthorized        PaymentStatus = "authorized"
	StatusCapturing         PaymentStatus = "capturing"
	StatusCompleted         PaymentStatus = "completed"
	StatusFailed            PaymentStatus = "failed"
	StatusCancelled         PaymentStatus = "cancelled"
	StatusRefunded          PaymentStatus = "refunded"
	StatusPartiallyRefunded PaymentStatus = "partially_refunded"
	StatusDisputed          PaymentStatus = "disputed"
	StatusChargeback        PaymentStatus = "chargeback"
)

const (
	DefaultStatusReason = "Status updated"
	SystemActor         = "system"
)

// StatusChange is one entry of the append-only status log.
type StatusChange struct {
	Status      PaymentStatus `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Reason      string        `json:"reason"`
	PerformedBy string        `json:"performedBy"`
}

type FailureInfo struct {
	Code           string    `json:"code"`
	Message        string    `json:"message"`
	Reason         string    `json:"reason,omitempty"`
	GatewayMessage string    `json:"gatewayMessage,omitempty"`
	FailedAt       time.Time `json:"failedAt"`
	RetryCount     int       `json:"retryCount"`
}

type Payment struct {
	ID      string
	OrderID *string
	UserID  string

	Amount         decimal.Decimal
	Currency       Currency
	Market         Market
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingAmount decimal.Decimal
	DiscountAmount decimal.Decimal
	Items          []LineItem

	PaymentMethod        PaymentMethod
	Gateway              Gateway
	GatewayOrderID       *string
	GatewayTransactionID *string
	GatewayFee           Fee
	GatewayData          GatewayData

	Status        PaymentStatus
	StatusHistory []StatusChange

	Refunds       []Refund
	TotalRefunded decimal.Decimal

	Failure *FailureInfo

	PaidAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is the optimistic concurrency token, bumped by the repository on every write.
	Version int64
}

type NewPaymentParams struct {
	ID            string
	UserID        string
	Amount        decimal.Decimal
	Currency      Currency
	Market        Market
	PaymentMethod PaymentMethod
	Gateway       Gateway
	Breakdown     *Breakdown
	Items         []LineItem
	GatewayData   GatewayData
	Now           time.Time
}

func NewPayment(params NewPaymentParams) (*Payment, error) {
	if params.ID == "" {
		return nil, NewMissingRequiredFieldError("payment ID")
	}
	if params.UserID == "" {
		return nil, NewMissingRequiredFieldError("user ID")
	}
	if err := ValidateAmount(params.Amount); err != nil {
		return nil, err
	}
	if params.Currency == "" {
		return nil, NewMissingRequiredFieldError("currency")
	}
	if params.Market == "" {
		params.Market = DefaultMarket
	}

	p := &Payment{
		ID:             params.ID,
		UserID:         params.UserID,
		Amount:         params.Amount,
		Currency:       params.Currency,
		Market:         params.Market,
		Subtotal:       decimal.Zero,
		TaxAmount:      decimal.Zero,
		ShippingAmount: decimal.Zero,
		DiscountAmount: decimal.Zero,
		Items:          params.Items,
		PaymentMethod:  params.PaymentMethod,
		Gateway:        params.Gateway,
		GatewayData:    params.GatewayData,
		TotalRefunded:  decimal.Zero,
		CreatedAt:      params.Now,
		UpdatedAt:      params.Now,
	}

	if params.Breakdown != nil {
		if err := p.ApplyBreakdown(*params.Breakdown); err != nil {
			return nil, err
		}
	}

	p.RecalculateFee()
	p.setStatus(StatusPending, "Payment created", params.UserID, params.Now)

	return p, nil
}

// ApplyBreakdown recomputes the amount from its components and stores them.
// A breakdown that does not add up to the current amount is rejected.
func (p *Payment) ApplyBreakdown(b Breakdown) error {
	if err := b.Validate(); err != nil {
		return err
	}
	total := b.Total()
	if !total.Equal(p.Amount) {
		return NewAmountMismatchError(total, p.Amount)
	}
	p.Subtotal = b.Subtotal
	p.TaxAmount = b.Tax()
	p.ShippingAmount = b.Shipping
	p.DiscountAmount = b.Discount
	return nil
}

// RecalculateFee replaces the gateway fee from (amount, method, market). Call it whenever any of the three change.
func (p *Payment) RecalculateFee() {
	p.GatewayFee = ComputeFee(p.Amount, p.PaymentMethod, p.Market)
}

// AttachGatewayOrder links a freshly created PayPal order.
func (p *Payment) AttachGatewayOrder(gatewayOrderID string, data *PayPalData) {
	p.GatewayOrderID = &gatewayOrderID
	p.GatewayData = data
}

// MarkProcessing records a capture that PayPal accepted but has not settled yet.
func (p *Payment) MarkProcessing(transactionID, reason string, now time.Time) error {
	if err := p.canTransitionTo(StatusProcessing); err != nil {
		return err
	}
	if err := p.setTransactionID(transactionID); err != nil {
		return err
	}
	p.setStatus(StatusProcessing, reason, SystemActor, now)
	return nil
}

// Complete settles the payment. The transaction id is written once and never replaced.
func (p *Payment) Complete(transactionID, reason string, now time.Time) error {
	if err := p.canTransitionTo(StatusCompleted); err != nil {
		return err
	}
	if err := p.setTransactionID(transactionID); err != nil {
		return err
	}
	// a dispute resolved in the seller's favour keeps the original refund window
	if p.PaidAt == nil {
		paidAt := now
		p.PaidAt = &paidAt
	}
	p.setStatus(StatusCompleted, reason, SystemActor, now)
	return nil
}

func (p *Payment) Fail(failure FailureInfo, now time.Time) error {
	if err := p.canTransitionTo(StatusFailed); err != nil {
		return err
	}
	if p.Failure != nil {
		failure.RetryCount = p.Failure.RetryCount + 1
	}
	failure.FailedAt = now
	p.Failure = &failure

	reason := failure.Reason
	if reason == "" {
		reason = failure.Message
	}
	p.setStatus(StatusFailed, reason, SystemActor, now)
	return nil
}

func (p *Payment) Cancel(reason string, now time.Time) error {
	if err := p.canTransitionTo(StatusCancelled); err != nil {
		return err
	}
	p.setStatus(StatusCancelled, reason, SystemActor, now)
	return nil
}

// LinkOrder records the order created from this payment.
func (p *Payment) LinkOrder(orderID string) {
	p.OrderID = &orderID
}

// IsSettled reports whether funds were captured at some point, whatever happened after.
func (p *Payment) IsSettled() bool {
	switch p.Status {
	case StatusCompleted, StatusPartiallyRefunded, StatusRefunded, StatusDisputed, StatusChargeback:
		return true
	}
	return false
}

// helper to identify payment statuses that are terminal
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case StatusFailed, StatusCancelled, StatusRefunded, StatusChargeback:
		return true
	default:
		return false
	}
}

func (p *Payment) setTransactionID(transactionID string) error {
	if transactionID == "" {
		return NewMissingRequiredFieldError("gateway transaction ID")
	}
	if p.GatewayTransactionID != nil {
		if *p.GatewayTransactionID != transactionID {
			return NewDuplicateTransactionError(*p.GatewayTransactionID, nil)
		}
		return nil
	}
	p.GatewayTransactionID = &transactionID
	return nil
}

// setStatus is the only writer of Status; it appends one history entry per change.
func (p *Payment) setStatus(target PaymentStatus, reason, performedBy string, now time.Time) {
	if reason == "" {
		reason = DefaultStatusReason
	}
	if performedBy == "" {
		performedBy = SystemActor
	}
	p.Status = target
	p.UpdatedAt = now
	p.StatusHistory = append(p.StatusHistory, StatusChange{
		Status:      target,
		Timestamp:   now,
		Reason:      reason,
		PerformedBy: performedBy,
	})
}

// defines various payment statuses that can be transitioned to
func (p *Payment) canTransitionTo(target PaymentStatus) error {
	switch p.Status {
	case StatusPending:
		return p.allow(target, StatusProcessing, StatusAuthorized, StatusCapturing, StatusCompleted, StatusFailed, StatusCancelled)
	case StatusProcessing:
		return p.allow(target, StatusAuthorized, StatusCapturing, StatusCompleted, StatusFailed, StatusCancelled)
	case StatusAuthorized:
		return p.allow(target, StatusCapturing, StatusCompleted, StatusFailed, StatusCancelled)
	case StatusCapturing:
		return p.allow(target, StatusProcessing, StatusCompleted, StatusFailed)
	case StatusCompleted:
		return p.allow(target, StatusPartiallyRefunded, StatusRefunded, StatusDisputed, StatusChargeback)
	case StatusPartiallyRefunded:
		return p.allow(target, StatusRefunded, StatusDisputed, StatusChargeback)
	case StatusDisputed:
		return p.allow(target, StatusCompleted, StatusChargeback)
	}
	return NewInvalidTransitionError(p.Status, target)
}

// Helper to check allowed state transitions
func (p *Payment) allow(target PaymentStatus, allowed ...PaymentStatus) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(p.Status, target)
}

// NetAmount is what the marketplace keeps after the processor fee.
func (p *Payment) NetAmount() decimal.Decimal {
	return p.Amount.Sub(p.GatewayFee.Total)
}
