package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RefundWindow is how long after settlement a refund may be initiated.
const RefundWindow = 90 * 24 * time.Hour

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
	RefundStatusFailed    RefundStatus = "failed"
)

type Refund struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        Currency        `json:"currency"`
	Reason          string          `json:"reason"`
	Status          RefundStatus    `json:"status"`
	GatewayRefundID *string         `json:"gatewayRefundId,omitempty"`
	ProcessedAt     time.Time       `json:"processedAt"`
}

type RefundRequest struct {
	ID          string
	Amount      decimal.Decimal
	Reason      string
	PerformedBy string
}

// RefundableAmount is amount - totalRefunded.
func (p *Payment) RefundableAmount() decimal.Decimal {
	return p.Amount.Sub(p.TotalRefunded)
}

// RefundWindowEnd is 90 days after paidAt, or after updatedAt when the payment has no paidAt.
func (p *Payment) RefundWindowEnd() time.Time {
	base := p.UpdatedAt
	if p.PaidAt != nil {
		base = *p.PaidAt
	}
	return base.Add(RefundWindow)
}

func (p *Payment) IsRefundable(now time.Time) bool {
	return p.refundBlocker(now) == ""
}

func (p *Payment) refundBlocker(now time.Time) string {
	if p.Status != StatusCompleted && p.Status != StatusPartiallyRefunded {
		return fmt.Sprintf("status is %s", p.Status)
	}
	if p.TotalRefunded.GreaterThanOrEqual(p.Amount) {
		return "payment is fully refunded"
	}
	if now.After(p.RefundWindowEnd()) {
		return "refund window has closed"
	}
	return ""
}

// InitiateRefund appends a pending refund and moves the payment to refunded or partially_refunded.
// The amount is checked against the refundable amount before the refundability window and status.
func (p *Payment) InitiateRefund(req RefundRequest, now time.Time) (*Refund, error) {
	if req.ID == "" {
		return nil, NewMissingRequiredFieldError("refund ID")
	}
	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if refundable := p.RefundableAmount(); req.Amount.GreaterThan(refundable) {
		return nil, NewExceedsRefundableAmountError(req.Amount, refundable)
	}
	if blocker := p.refundBlocker(now); blocker != "" {
		return nil, NewNotRefundableError(blocker)
	}

	refund := Refund{
		ID:          req.ID,
		Amount:      req.Amount,
		Currency:    p.Currency,
		Reason:      req.Reason,
		Status:      RefundStatusPending,
		ProcessedAt: now,
	}
	if err := p.recordRefund(refund, req.Reason, req.PerformedBy, now); err != nil {
		return nil, err
	}
	return &p.Refunds[len(p.Refunds)-1], nil
}

// ApplyGatewayRefund records a refund reported by the processor. It returns false when the
// refund was already recorded. A pending refund of the same amount without a gateway id is
// settled in place instead of being counted twice.
func (p *Payment) ApplyGatewayRefund(refundID, gatewayRefundID string, amount decimal.Decimal, now time.Time) (bool, error) {
	if gatewayRefundID == "" {
		return false, NewMissingRequiredFieldError("gateway refund ID")
	}
	for _, r := range p.Refunds {
		if r.GatewayRefundID != nil && *r.GatewayRefundID == gatewayRefundID {
			return false, nil
		}
	}
	for i := range p.Refunds {
		r := &p.Refunds[i]
		if r.Status == RefundStatusPending && r.GatewayRefundID == nil && r.Amount.Equal(amount) {
			id := gatewayRefundID
			r.GatewayRefundID = &id
			r.Status = RefundStatusCompleted
			p.UpdatedAt = now
			return true, nil
		}
	}

	if err := ValidateAmount(amount); err != nil {
		return false, err
	}
	if refundable := p.RefundableAmount(); amount.GreaterThan(refundable) {
		return false, NewExceedsRefundableAmountError(amount, refundable)
	}
	if p.Status != StatusCompleted && p.Status != StatusPartiallyRefunded {
		return false, NewNotRefundableError(fmt.Sprintf("status is %s", p.Status))
	}

	id := gatewayRefundID
	refund := Refund{
		ID:              refundID,
		Amount:          amount,
		Currency:        p.Currency,
		Reason:          "Refunded at gateway",
		Status:          RefundStatusCompleted,
		GatewayRefundID: &id,
		ProcessedAt:     now,
	}
	if err := p.recordRefund(refund, refund.Reason, SystemActor, now); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Payment) recordRefund(refund Refund, reason, performedBy string, now time.Time) error {
	total := p.TotalRefunded.Add(refund.Amount)
	target := StatusPartiallyRefunded
	if total.GreaterThanOrEqual(p.Amount) {
		target = StatusRefunded
	}
	if target != p.Status {
		if err := p.canTransitionTo(target); err != nil {
			return err
		}
	}

	p.Refunds = append(p.Refunds, refund)
	p.TotalRefunded = total
	if target != p.Status {
		p.setStatus(target, reason, performedBy, now)
	} else {
		p.UpdatedAt = now
	}
	return nil
}

// ToPaymentCurrency converts an amount reported by the processor back into the payment's
// currency. PayPal reports in the settlement currency, so the original/settlement ratio is used.
func (p *Payment) ToPaymentCurrency(amount decimal.Decimal, currency Currency) (decimal.Decimal, error) {
	if currency == p.Currency {
		return amount, nil
	}
	data, ok := p.GatewayData.(*PayPalData)
	if !ok || currency != data.SettlementCurrency || data.SettlementAmount.IsZero() {
		return decimal.Zero, NewInvalidCurrencyError(string(currency))
	}
	if amount.Equal(data.SettlementAmount) {
		return data.OriginalAmount, nil
	}
	return Round2(amount.Mul(data.OriginalAmount).Div(data.SettlementAmount)), nil
}
