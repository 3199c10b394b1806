package services

import (
	"context"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type QueryService struct {
	paymentRepo application.PaymentRepository
	orderRepo   application.OrderRepository
}

func NewQueryService(
	paymentRepo application.PaymentRepository,
	orderRepo application.OrderRepository,
) *QueryService {
	return &QueryService{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
	}
}

// GetPayment returns the payment to its owner or to an admin. Anyone else gets not found.
func (s *QueryService) GetPayment(ctx context.Context, paymentID, callerID string, isAdmin bool) (*domain.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	if !isAdmin && payment.UserID != callerID {
		return nil, domain.NewPaymentNotFoundError(paymentID)
	}
	return payment, nil
}

// GetOrder returns the order created for a payment, if any.
func (s *QueryService) GetOrder(ctx context.Context, payment *domain.Payment) (*domain.Order, error) {
	if payment.OrderID == nil {
		return nil, nil
	}
	order, err := s.orderRepo.FindByID(ctx, *payment.OrderID)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return order, nil
}

func (s *QueryService) ListPayments(ctx context.Context, userID string, limit, offset int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset = max(offset, 0)

	payments, err := s.paymentRepo.FindByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	return payments, nil
}

// QuoteFee prices a prospective payment without storing anything.
func (s *QueryService) QuoteFee(amount decimal.Decimal, method, market string) (domain.Fee, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Fee{}, err
	}
	m, err := domain.ParsePaymentMethod(method)
	if err != nil {
		return domain.Fee{}, err
	}
	mkt, err := domain.ParseMarket(market)
	if err != nil {
		return domain.Fee{}, err
	}
	return domain.ComputeFee(amount, m, mkt), nil
}
