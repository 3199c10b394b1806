package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/go-playground/validator"
)

// Capture outcomes reported to metrics.
const (
	outcomeCompleted        = "completed"
	outcomePending          = "pending"
	outcomeDeclined         = "declined"
	outcomeAlreadyProcessed = "already_processed"
	outcomeTransient        = "transient_failure"
	outcomeError            = "error"
)

type CaptureService struct {
	lifecycle
	paymentRepo application.PaymentRepository
	orderRepo   application.OrderRepository
	gateway     application.GatewayClient
	validate    *validator.Validate
}

func NewCaptureService(
	paymentRepo application.PaymentRepository,
	orderRepo application.OrderRepository,
	gateway application.GatewayClient,
	logger *slog.Logger,
	opts ...Option,
) *CaptureService {
	return &CaptureService{
		lifecycle:   newLifecycle(logger, opts),
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		gateway:     gateway,
		validate:    validator.New(),
	}
}

// Capture finalizes an approved PayPal order. It is idempotent by gateway order id:
// once the payment is settled every further call returns the same order without
// contacting PayPal again.
func (s *CaptureService) Capture(ctx context.Context, cmd CaptureCommand) (*CheckoutResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	payment, err := s.paymentRepo.FindByGatewayOrderID(ctx, cmd.GatewayOrderID)
	if err != nil {
		return nil, wrapPersistence(err)
	}
	if payment.UserID != cmd.UserID {
		return nil, domain.NewPaymentNotFoundError(cmd.GatewayOrderID)
	}

	if payment.IsSettled() {
		return s.settledResult(ctx, payment)
	}
	if payment.IsTerminal() {
		return nil, domain.NewInvalidTransitionError(payment.Status, domain.StatusCompleted)
	}

	var result *application.CaptureResult
	if payment.Status == domain.StatusProcessing {
		// PayPal already accepted the capture; ask where it stands instead of capturing twice.
		result, err = s.gateway.GetOrder(ctx, cmd.GatewayOrderID)
	} else {
		result, err = s.gateway.CaptureOrder(ctx, cmd.GatewayOrderID)
	}
	if err != nil {
		return s.handleCaptureFailure(ctx, payment, err)
	}

	return s.applyCapture(ctx, payment, result)
}

func (s *CaptureService) applyCapture(
	ctx context.Context,
	payment *domain.Payment,
	result *application.CaptureResult,
) (*CheckoutResult, error) {
	switch result.CaptureStatus {
	case application.CaptureStatusCompleted:
		return s.complete(ctx, payment, result)

	case application.CaptureStatusPending:
		updated, _, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
			if p.Status == domain.StatusProcessing || p.IsSettled() {
				return false, nil
			}
			recordPayer(p, result)
			reason := "Capture pending at gateway"
			if result.StatusReason != "" {
				reason = fmt.Sprintf("%s: %s", reason, result.StatusReason)
			}
			return true, p.MarkProcessing(result.CaptureID, reason, s.now())
		})
		if err != nil {
			return nil, s.persistFailure(err, result.OrderID)
		}
		s.metrics.CaptureObserved(outcomePending)
		if updated.IsSettled() {
			return s.settledResult(ctx, updated)
		}
		return &CheckoutResult{Payment: updated}, nil

	case application.CaptureStatusDeclined, application.CaptureStatusFailed:
		updated, err := s.fail(ctx, payment, domain.FailureInfo{
			Code:    "CAPTURE_" + result.CaptureStatus,
			Message: "Capture was declined by the gateway",
			Reason:  result.StatusReason,
		})
		if err != nil {
			return nil, err
		}
		return nil, &application.GatewayError{
			Name:       "CAPTURE_" + result.CaptureStatus,
			Issue:      result.StatusReason,
			Message:    fmt.Sprintf("capture of payment %s was %s", updated.ID, result.CaptureStatus),
			StatusCode: 422,
		}

	case "":
		// Order not captured yet (approval missing); nothing to record.
		return nil, application.NewUpstreamProtocolError(
			fmt.Sprintf("gateway order %s has no capture (status %s)", result.OrderID, result.OrderStatus))
	}

	return nil, application.NewUpstreamProtocolError(
		fmt.Sprintf("unexpected capture status %q for gateway order %s", result.CaptureStatus, result.OrderID))
}

func (s *CaptureService) complete(
	ctx context.Context,
	payment *domain.Payment,
	result *application.CaptureResult,
) (*CheckoutResult, error) {
	updated, changed, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
		if p.IsSettled() {
			return false, nil
		}
		recordPayer(p, result)
		return true, p.Complete(result.CaptureID, "Captured via PayPal", s.now())
	})
	if err != nil {
		return nil, s.persistFailure(err, result.OrderID)
	}

	order, err := s.ensureOrder(ctx, s.paymentRepo, s.orderRepo, updated)
	if err != nil {
		return nil, err
	}

	s.metrics.CaptureObserved(outcomeCompleted)
	if changed {
		s.publish(ctx, domain.EventPaymentCompleted, updated)
		s.logger.Info("payment captured",
			"payment_id", updated.ID,
			"order_id", order.ID,
			"transaction_id", result.CaptureID,
		)
	}

	return &CheckoutResult{Payment: updated, Order: order}, nil
}

func (s *CaptureService) handleCaptureFailure(
	ctx context.Context,
	payment *domain.Payment,
	err error,
) (*CheckoutResult, error) {
	gwErr, isGateway := application.IsGatewayError(err)

	switch {
	case isGateway && gwErr.IsAlreadyProcessed():
		current, findErr := s.paymentRepo.FindByID(ctx, payment.ID)
		if findErr != nil {
			return nil, wrapPersistence(findErr)
		}
		s.metrics.CaptureObserved(outcomeAlreadyProcessed)
		if current.IsSettled() {
			return s.settledResult(ctx, current)
		}
		// Captured at PayPal but not recorded here yet; settle from the order itself.
		result, getErr := s.gateway.GetOrder(ctx, *current.GatewayOrderID)
		if getErr != nil || !result.IsCaptured() {
			return nil, application.NewAlreadyProcessedError(*current.GatewayOrderID, err)
		}
		return s.applyCapture(ctx, current, result)

	case application.IsRetryable(err):
		// Leave the payment where it was so the caller can retry.
		s.metrics.CaptureObserved(outcomeTransient)
		s.logger.Warn("transient capture failure",
			"payment_id", payment.ID,
			"error", err,
		)
		return nil, err

	case isGateway && gwErr.IsDeclined():
		if _, failErr := s.fail(ctx, payment, domain.FailureInfo{
			Code:           gwErr.Code(),
			Message:        "Capture was rejected by the gateway",
			Reason:         gwErr.Message,
			GatewayMessage: gwErr.Message,
		}); failErr != nil {
			s.logger.Error("failed to record capture rejection",
				"payment_id", payment.ID,
				"error", failErr,
			)
		}
		return nil, err

	case isGateway:
		// Approval missing, credentials rejected or order unknown: the payment stays
		// where it was so a later capture or the expiration sweep can settle it.
		s.metrics.CaptureObserved(outcomeError)
		s.logger.Warn("capture rejected without decline",
			"payment_id", payment.ID,
			"gateway_code", gwErr.Code(),
			"status_code", gwErr.StatusCode,
		)
		return nil, err
	}

	s.metrics.CaptureObserved(outcomeError)
	return nil, err
}

func (s *CaptureService) fail(ctx context.Context, payment *domain.Payment, failure domain.FailureInfo) (*domain.Payment, error) {
	updated, changed, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
		if p.IsSettled() || p.IsTerminal() {
			return false, nil
		}
		return true, p.Fail(failure, s.now())
	})
	if err != nil {
		return nil, wrapPersistence(err)
	}

	s.metrics.CaptureObserved(outcomeDeclined)
	if changed {
		s.publish(ctx, domain.EventPaymentFailed, updated)
		s.logger.Warn("payment failed",
			"payment_id", updated.ID,
			"failure_code", failure.Code,
		)
	}
	return updated, nil
}

func (s *CaptureService) settledResult(ctx context.Context, payment *domain.Payment) (*CheckoutResult, error) {
	order, err := s.ensureOrder(ctx, s.paymentRepo, s.orderRepo, payment)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{Payment: payment, Order: order}, nil
}

// persistFailure turns a lost uniqueness race on the transaction id into AlreadyProcessed.
func (s *CaptureService) persistFailure(err error, gatewayOrderID string) error {
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		s.metrics.CaptureObserved(outcomeAlreadyProcessed)
		return application.NewAlreadyProcessedError(gatewayOrderID, err)
	}
	return wrapPersistence(err)
}

func recordPayer(p *domain.Payment, result *application.CaptureResult) {
	data, ok := p.GatewayData.(*domain.PayPalData)
	if !ok {
		return
	}
	data.CaptureID = result.CaptureID
	if result.Payer != nil {
		data.Payer = result.Payer
	}
}

// Reconcile settles a stale PayPal payment from what PayPal reports for its order.
// Approved orders are captured; orders the buyer never approved are cancelled.
func (s *CaptureService) Reconcile(ctx context.Context, payment *domain.Payment) error {
	if payment.GatewayOrderID == nil {
		return domain.NewMissingRequiredFieldError("gateway order ID")
	}
	gatewayOrderID := *payment.GatewayOrderID

	result, err := s.gateway.GetOrder(ctx, gatewayOrderID)
	if err != nil {
		if gwErr, ok := application.IsGatewayError(err); ok && gwErr.StatusCode == 404 {
			return s.expire(ctx, payment, "Gateway order not found")
		}
		return err
	}

	if !result.IsCaptured() && result.OrderStatus == orderStatusApproved && payment.Status == domain.StatusPending {
		result, err = s.gateway.CaptureOrder(ctx, gatewayOrderID)
		if err != nil {
			_, err = s.handleCaptureFailure(ctx, payment, err)
			return err
		}
	}

	if result.IsCaptured() {
		_, err := s.applyCapture(ctx, payment, result)
		if _, declined := application.IsGatewayError(err); declined {
			// the decline is already recorded on the payment
			return nil
		}
		return err
	}

	if payment.Status != domain.StatusPending {
		return nil
	}
	return s.expire(ctx, payment, "Approval window expired")
}

// orderStatusApproved is PayPal's status for an order the buyer approved but nobody captured.
const orderStatusApproved = "APPROVED"

func (s *CaptureService) expire(ctx context.Context, payment *domain.Payment, reason string) error {
	updated, changed, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
		if p.Status != domain.StatusPending {
			return false, nil
		}
		return true, p.Cancel(reason, s.now())
	})
	if err != nil {
		return wrapPersistence(err)
	}
	if changed {
		s.publish(ctx, domain.EventPaymentCancelled, updated)
		s.logger.Info("stale payment cancelled",
			"payment_id", updated.ID,
			"reason", reason,
		)
	}
	return nil
}
