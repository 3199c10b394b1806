package rest

import (
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
)

// Money values are rendered as fixed two-decimal strings.

type FeeResponse struct {
	Percentage string `json:"percentage"`
	Fixed      string `json:"fixed"`
	Total      string `json:"total"`
}

type RefundResponse struct {
	ID              string    `json:"id"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	GatewayRefundID *string   `json:"gatewayRefundId,omitempty"`
	ProcessedAt     time.Time `json:"processedAt"`
}

type PaymentResponse struct {
	ID      string  `json:"id"`
	OrderID *string `json:"orderId,omitempty"`
	UserID  string  `json:"userId"`

	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	Market         string            `json:"market"`
	Subtotal       string            `json:"subtotal"`
	TaxAmount      string            `json:"taxAmount"`
	ShippingAmount string            `json:"shippingAmount"`
	DiscountAmount string            `json:"discountAmount"`
	Items          []domain.LineItem `json:"items"`

	PaymentMethod        string             `json:"paymentMethod"`
	Gateway              string             `json:"gateway"`
	GatewayOrderID       *string            `json:"gatewayOrderId,omitempty"`
	GatewayTransactionID *string            `json:"gatewayTransactionId,omitempty"`
	GatewayFee           FeeResponse        `json:"gatewayFee"`
	GatewayData          domain.GatewayData `json:"gatewayData,omitempty"`

	Status        string                `json:"status"`
	StatusHistory []domain.StatusChange `json:"statusHistory"`
	Refunds       []RefundResponse      `json:"refunds"`
	TotalRefunded string                `json:"totalRefunded"`
	Failure       *domain.FailureInfo   `json:"failure,omitempty"`

	NetAmount        string `json:"netAmount"`
	RefundableAmount string `json:"refundableAmount"`
	IsRefundable     bool   `json:"isRefundable"`

	PaidAt    *time.Time `json:"paidAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type OrderResponse struct {
	ID        string            `json:"id"`
	PaymentID string            `json:"paymentId"`
	UserID    string            `json:"userId"`
	Items     []domain.LineItem `json:"items"`
	Amount    string            `json:"amount"`
	Currency  string            `json:"currency"`
	Market    string            `json:"market"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

type PayPalCheckoutResponse struct {
	PaymentID   string `json:"paymentId"`
	ApprovalURL string `json:"approvalUrl"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

type CheckoutResponse struct {
	Payment PaymentResponse `json:"payment"`
	Order   *OrderResponse  `json:"order"`
}

type PaymentListResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Count    int               `json:"count"`
}

type FeeQuoteResponse struct {
	Amount     string `json:"amount"`
	Method     string `json:"method"`
	Market     string `json:"market"`
	Percentage string `json:"percentage"`
	Fixed      string `json:"fixed"`
	Total      string `json:"total"`
	NetAmount  string `json:"netAmount"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func ToFeeResponse(f domain.Fee) FeeResponse {
	return FeeResponse{
		Percentage: f.Percentage.String(),
		Fixed:      money(f.Fixed),
		Total:      money(f.Total),
	}
}

// ToPaymentResponse renders the payment with its derived fields evaluated at now.
func ToPaymentResponse(p *domain.Payment, now time.Time) PaymentResponse {
	items := p.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	history := p.StatusHistory
	if history == nil {
		history = []domain.StatusChange{}
	}

	refunds := make([]RefundResponse, 0, len(p.Refunds))
	for _, r := range p.Refunds {
		refunds = append(refunds, RefundResponse{
			ID:              r.ID,
			Amount:          money(r.Amount),
			Currency:        string(r.Currency),
			Reason:          r.Reason,
			Status:          string(r.Status),
			GatewayRefundID: r.GatewayRefundID,
			ProcessedAt:     r.ProcessedAt,
		})
	}

	return PaymentResponse{
		ID:                   p.ID,
		OrderID:              p.OrderID,
		UserID:               p.UserID,
		Amount:               money(p.Amount),
		Currency:             string(p.Currency),
		Market:               string(p.Market),
		Subtotal:             money(p.Subtotal),
		TaxAmount:            money(p.TaxAmount),
		ShippingAmount:       money(p.ShippingAmount),
		DiscountAmount:       money(p.DiscountAmount),
		Items:                items,
		PaymentMethod:        string(p.PaymentMethod),
		Gateway:              string(p.Gateway),
		GatewayOrderID:       p.GatewayOrderID,
		GatewayTransactionID: p.GatewayTransactionID,
		GatewayFee:           ToFeeResponse(p.GatewayFee),
		GatewayData:          p.GatewayData,
		Status:               string(p.Status),
		StatusHistory:        history,
		Refunds:              refunds,
		TotalRefunded:        money(p.TotalRefunded),
		Failure:              p.Failure,
		NetAmount:            money(p.NetAmount()),
		RefundableAmount:     money(p.RefundableAmount()),
		IsRefundable:         p.IsRefundable(now),
		PaidAt:               p.PaidAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func ToOrderResponse(o *domain.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	items := o.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return &OrderResponse{
		ID:        o.ID,
		PaymentID: o.PaymentID,
		UserID:    o.UserID,
		Items:     items,
		Amount:    money(o.Amount),
		Currency:  string(o.Currency),
		Market:    string(o.Market),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}
}

func ToCheckoutResponse(r *services.CheckoutResult, now time.Time) CheckoutResponse {
	return CheckoutResponse{
		Payment: ToPaymentResponse(r.Payment, now),
		Order:   ToOrderResponse(r.Order),
	}
}

func ToPayPalCheckoutResponse(c *services.PayPalCheckout) PayPalCheckoutResponse {
	return PayPalCheckoutResponse{
		PaymentID:   c.Payment.ID,
		ApprovalURL: c.ApprovalURL,
		Amount:      money(c.Payment.Amount),
		Currency:    string(c.Payment.Currency),
	}
}

func ToFeeQuoteResponse(amount decimal.Decimal, method, market string, fee domain.Fee) FeeQuoteResponse {
	return FeeQuoteResponse{
		Amount:     money(amount),
		Method:     method,
		Market:     market,
		Percentage: fee.Percentage.String(),
		Fixed:      money(fee.Fixed),
		Total:      money(fee.Total),
		NetAmount:  money(amount.Sub(fee.Total)),
	}
}
