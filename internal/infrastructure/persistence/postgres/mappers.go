package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
)

// toDBModel: maps domain entity to db model
func toDBModel(p *domain.Payment) (*PaymentModel, error) {
	items, err := marshalItems(p.Items)
	if err != nil {
		return nil, err
	}
	gatewayData, err := marshalGatewayData(p.GatewayData)
	if err != nil {
		return nil, err
	}
	var failure []byte
	if p.Failure != nil {
		if failure, err = json.Marshal(p.Failure); err != nil {
			return nil, fmt.Errorf("encode failure: %w", err)
		}
	}

	return &PaymentModel{
		ID:                   p.ID,
		OrderID:              p.OrderID,
		UserID:               p.UserID,
		Amount:               p.Amount.StringFixed(2),
		Currency:             string(p.Currency),
		Market:               string(p.Market),
		Subtotal:             p.Subtotal.StringFixed(2),
		TaxAmount:            p.TaxAmount.StringFixed(2),
		ShippingAmount:       p.ShippingAmount.StringFixed(2),
		DiscountAmount:       p.DiscountAmount.StringFixed(2),
		Items:                items,
		PaymentMethod:        string(p.PaymentMethod),
		Gateway:              string(p.Gateway),
		GatewayOrderID:       p.GatewayOrderID,
		GatewayTransactionID: p.GatewayTransactionID,
		FeePercentage:        p.GatewayFee.Percentage.String(),
		FeeFixed:             p.GatewayFee.Fixed.StringFixed(2),
		FeeTotal:             p.GatewayFee.Total.StringFixed(2),
		GatewayData:          gatewayData,
		Status:               string(p.Status),
		TotalRefunded:        p.TotalRefunded.StringFixed(2),
		Failure:              failure,
		PaidAt:               p.PaidAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		Version:              p.Version,
	}, nil
}

// toDomainModel: maps db model and its child rows to domain entity
func toDomainModel(m *PaymentModel, history []StatusChangeModel, refunds []RefundModel) (*domain.Payment, error) {
	amounts, err := parseDecimals(
		m.Amount, m.Subtotal, m.TaxAmount, m.ShippingAmount, m.DiscountAmount,
		m.FeePercentage, m.FeeFixed, m.FeeTotal, m.TotalRefunded,
	)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", m.ID, err)
	}

	p := &domain.Payment{
		ID:                   m.ID,
		OrderID:              m.OrderID,
		UserID:               m.UserID,
		Amount:               amounts[0],
		Currency:             domain.Currency(m.Currency),
		Market:               domain.Market(m.Market),
		Subtotal:             amounts[1],
		TaxAmount:            amounts[2],
		ShippingAmount:       amounts[3],
		DiscountAmount:       amounts[4],
		PaymentMethod:        domain.PaymentMethod(m.PaymentMethod),
		Gateway:              domain.Gateway(m.Gateway),
		GatewayOrderID:       m.GatewayOrderID,
		GatewayTransactionID: m.GatewayTransactionID,
		GatewayFee:           domain.Fee{Percentage: amounts[5], Fixed: amounts[6], Total: amounts[7]},
		Status:               domain.PaymentStatus(m.Status),
		TotalRefunded:        amounts[8],
		PaidAt:               m.PaidAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		Version:              m.Version,
	}

	if p.Items, err = unmarshalItems(m.Items); err != nil {
		return nil, fmt.Errorf("payment %s: %w", m.ID, err)
	}
	if p.GatewayData, err = unmarshalGatewayData(m.GatewayData); err != nil {
		return nil, fmt.Errorf("payment %s: %w", m.ID, err)
	}
	if len(m.Failure) > 0 {
		p.Failure = &domain.FailureInfo{}
		if err := json.Unmarshal(m.Failure, p.Failure); err != nil {
			return nil, fmt.Errorf("payment %s: decode failure: %w", m.ID, err)
		}
	}

	p.StatusHistory = make([]domain.StatusChange, 0, len(history))
	for _, h := range history {
		p.StatusHistory = append(p.StatusHistory, domain.StatusChange{
			Status:      domain.PaymentStatus(h.Status),
			Timestamp:   h.CreatedAt,
			Reason:      h.Reason,
			PerformedBy: h.PerformedBy,
		})
	}

	p.Refunds = make([]domain.Refund, 0, len(refunds))
	for _, r := range refunds {
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("refund %s: %w", r.ID, err)
		}
		p.Refunds = append(p.Refunds, domain.Refund{
			ID:              r.ID,
			Amount:          amount,
			Currency:        domain.Currency(r.Currency),
			Reason:          r.Reason,
			Status:          domain.RefundStatus(r.Status),
			GatewayRefundID: r.GatewayRefundID,
			ProcessedAt:     r.ProcessedAt,
		})
	}

	return p, nil
}

func toOrderModel(o *domain.Order) (*OrderModel, error) {
	items, err := marshalItems(o.Items)
	if err != nil {
		return nil, err
	}
	return &OrderModel{
		ID:        o.ID,
		PaymentID: o.PaymentID,
		UserID:    o.UserID,
		Items:     items,
		Amount:    o.Amount.StringFixed(2),
		Currency:  string(o.Currency),
		Market:    string(o.Market),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
	}, nil
}

func toDomainOrder(m *OrderModel) (*domain.Order, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", m.ID, err)
	}
	items, err := unmarshalItems(m.Items)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", m.ID, err)
	}
	return &domain.Order{
		ID:        m.ID,
		PaymentID: m.PaymentID,
		UserID:    m.UserID,
		Items:     items,
		Amount:    amount,
		Currency:  domain.Currency(m.Currency),
		Market:    domain.Market(m.Market),
		Status:    domain.OrderStatus(m.Status),
		CreatedAt: m.CreatedAt,
	}, nil
}

func marshalItems(items []domain.LineItem) ([]byte, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return b, nil
}

func unmarshalItems(b []byte) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if len(b) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func marshalGatewayData(data domain.GatewayData) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	inner, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode gateway data: %w", err)
	}
	b, err := json.Marshal(gatewayDataEnvelope{Type: string(data.Gateway()), Data: inner})
	if err != nil {
		return nil, fmt.Errorf("encode gateway data: %w", err)
	}
	return b, nil
}

func unmarshalGatewayData(b []byte) (domain.GatewayData, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var env gatewayDataEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode gateway data: %w", err)
	}

	var data domain.GatewayData
	switch domain.Gateway(env.Type) {
	case domain.GatewayPayPal:
		data = &domain.PayPalData{}
	case domain.GatewayCardSimulator:
		data = &domain.CardData{}
	default:
		return nil, fmt.Errorf("decode gateway data: unknown type %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return nil, fmt.Errorf("decode gateway data: %w", err)
	}
	return data, nil
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parse numeric %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}
