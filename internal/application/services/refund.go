package services

import (
	"context"
	"log/slog"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
)

type RefundService struct {
	lifecycle
	paymentRepo application.PaymentRepository
	validate    *validator.Validate
}

func NewRefundService(
	paymentRepo application.PaymentRepository,
	logger *slog.Logger,
	opts ...Option,
) *RefundService {
	return &RefundService{
		lifecycle:   newLifecycle(logger, opts),
		paymentRepo: paymentRepo,
		validate:    validator.New(),
	}
}

// Refund records an admin refund against a settled payment. The refund stays pending
// until PayPal reports it through the CAPTURE.REFUNDED webhook.
func (s *RefundService) Refund(ctx context.Context, cmd RefundCommand) (*domain.Payment, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, application.NewInvalidInputError(err)
	}
	if err := domain.ValidateAmount(cmd.Amount); err != nil {
		return nil, err
	}

	payment, err := s.paymentRepo.FindByID(ctx, cmd.PaymentID)
	if err != nil {
		return nil, wrapPersistence(err)
	}

	req := domain.RefundRequest{
		ID:          uuid.NewString(),
		Amount:      cmd.Amount,
		Reason:      cmd.Reason,
		PerformedBy: cmd.PerformedBy,
	}

	updated, _, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
		_, err := p.InitiateRefund(req, s.now())
		return true, err
	})
	if err != nil {
		s.metrics.RefundObserved("rejected")
		s.logger.Info("refund rejected",
			"payment_id", cmd.PaymentID,
			"amount", cmd.Amount.String(),
			"error", err,
		)
		return nil, wrapPersistence(err)
	}

	s.metrics.RefundObserved("accepted")
	s.publish(ctx, domain.EventPaymentRefunded, updated)
	s.logger.Info("refund initiated",
		"payment_id", updated.ID,
		"refund_id", req.ID,
		"amount", cmd.Amount.String(),
		"total_refunded", updated.TotalRefunded.String(),
		"status", updated.Status,
	)

	return updated, nil
}
