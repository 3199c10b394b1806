package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Webhook event types, without the optional "PAYMENT." prefix PayPal puts in front.
const (
	EventCaptureCompleted = "CAPTURE.COMPLETED"
	EventCaptureDenied    = "CAPTURE.DENIED"
	EventCaptureRefunded  = "CAPTURE.REFUNDED"
)

// WebhookEvent is the envelope PayPal posts. Resource is decoded per event type.
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type webhookAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type captureResource struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Amount        *webhookAmount `json:"amount"`
	CaptureID     string         `json:"capture_id"`
	Links         []domain.Link  `json:"links"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID   string `json:"order_id"`
			CaptureID string `json:"capture_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// WebhookService applies PayPal events to payments. Every handler is safe to run
// more than once for the same event.
type WebhookService struct {
	lifecycle
	paymentRepo application.PaymentRepository
	orderRepo   application.OrderRepository
	events      application.WebhookEventStore
}

func NewWebhookService(
	paymentRepo application.PaymentRepository,
	orderRepo application.OrderRepository,
	events application.WebhookEventStore,
	logger *slog.Logger,
	opts ...Option,
) *WebhookService {
	return &WebhookService{
		lifecycle:   newLifecycle(logger, opts),
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		events:      events,
	}
}

// HandleEvent returns an error only when PayPal should redeliver the event.
// Everything else, including unknown types and unmatched payments, is logged and acknowledged.
func (s *WebhookService) HandleEvent(ctx context.Context, event WebhookEvent) error {
	eventType := strings.TrimPrefix(strings.ToUpper(event.EventType), "PAYMENT.")
	logger := s.logger.With("event_id", event.ID, "event_type", event.EventType)

	if event.ID != "" {
		processed, err := s.events.IsProcessed(ctx, event.ID)
		if err != nil {
			s.metrics.WebhookObserved(eventType, outcomeTransient)
			return fmt.Errorf("check webhook event: %w", err)
		}
		if processed {
			logger.Info("webhook event already processed")
			s.metrics.WebhookObserved(eventType, "duplicate")
			return nil
		}
	}

	var err error
	switch eventType {
	case EventCaptureCompleted:
		err = s.handleCaptureCompleted(ctx, event.Resource)
	case EventCaptureDenied:
		err = s.handleCaptureDenied(ctx, event.Resource)
	case EventCaptureRefunded:
		err = s.handleCaptureRefunded(ctx, event.Resource)
	default:
		logger.Info("ignoring unhandled webhook event type")
		s.metrics.WebhookObserved(eventType, "ignored")
		s.markProcessed(ctx, logger, event)
		return nil
	}

	if err != nil {
		if application.IsRetryable(err) {
			logger.Error("webhook processing failed, gateway will redeliver", "error", err)
			s.metrics.WebhookObserved(eventType, outcomeTransient)
			return err
		}
		logger.Warn("webhook event ignored", "error", err, "category", application.CategorizeError(err))
		s.metrics.WebhookObserved(eventType, "ignored")
		s.markProcessed(ctx, logger, event)
		return nil
	}

	s.metrics.WebhookObserved(eventType, "applied")
	s.markProcessed(ctx, logger, event)
	return nil
}

func (s *WebhookService) markProcessed(ctx context.Context, logger *slog.Logger, event WebhookEvent) {
	if event.ID == "" {
		return
	}
	if err := s.events.MarkProcessed(ctx, event.ID, event.EventType); err != nil {
		logger.Warn("failed to record processed webhook event", "error", err)
	}
}

func (s *WebhookService) handleCaptureCompleted(ctx context.Context, raw json.RawMessage) error {
	res, err := decodeResource(raw)
	if err != nil {
		return err
	}

	payment, err := s.findByCapture(ctx, res.ID, res.SupplementaryData.RelatedIDs.OrderID)
	if err != nil {
		return err
	}

	updated, changed, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
		if p.IsSettled() {
			return false, nil
		}
		if data, ok := p.GatewayData.(*domain.PayPalData); ok {
			data.CaptureID = res.ID
		}
		return true, p.Complete(res.ID, "Capture completed (webhook)", s.now())
	})
	if err != nil {
		return err
	}

	if _, err := s.ensureOrder(ctx, s.paymentRepo, s.orderRepo, updated); err != nil {
		return err
	}

	if changed {
		s.publish(ctx, domain.EventPaymentCompleted, updated)
		s.logger.Info("payment completed by webhook",
			"payment_id", updated.ID,
			"transaction_id", res.ID,
		)
	}
	return nil
}

// handleCaptureDenied never downgrades a settled payment, and ignores denials for a
// capture other than the one recorded on the payment.
func (s *WebhookService) handleCaptureDenied(ctx context.Context, raw json.RawMessage) error {
	res, err := decodeResource(raw)
	if err != nil {
		return err
	}

	payment, err := s.findByCapture(ctx, res.ID, res.SupplementaryData.RelatedIDs.OrderID)
	if err != nil {
		return err
	}

	updated, changed, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
		if p.IsSettled() || p.IsTerminal() {
			return false, nil
		}
		if p.GatewayTransactionID != nil && *p.GatewayTransactionID != res.ID {
			return false, nil
		}
		return true, p.Fail(domain.FailureInfo{
			Code:           "CAPTURE_DENIED",
			Message:        "Capture was denied by the gateway",
			Reason:         res.StatusDetails.Reason,
			GatewayMessage: res.Status,
		}, s.now())
	})
	if err != nil {
		return err
	}

	if !changed {
		s.logger.Info("capture denial not applied",
			"payment_id", updated.ID,
			"status", updated.Status,
		)
		return nil
	}

	s.publish(ctx, domain.EventPaymentFailed, updated)
	s.logger.Warn("payment failed by webhook",
		"payment_id", updated.ID,
		"reason", res.StatusDetails.Reason,
	)
	return nil
}

func (s *WebhookService) handleCaptureRefunded(ctx context.Context, raw json.RawMessage) error {
	res, err := decodeResource(raw)
	if err != nil {
		return err
	}
	if res.ID == "" {
		return application.NewUpstreamProtocolError("refund event without refund id")
	}

	captureID := res.CaptureID
	if captureID == "" {
		captureID = captureIDFromLinks(res.Links)
	}
	if captureID == "" {
		captureID = res.SupplementaryData.RelatedIDs.CaptureID
	}
	if captureID == "" {
		return application.NewUpstreamProtocolError(fmt.Sprintf("refund %s does not reference a capture", res.ID))
	}

	if res.Amount == nil {
		return application.NewUpstreamProtocolError(fmt.Sprintf("refund %s has no amount", res.ID))
	}
	amount, err := decimal.NewFromString(res.Amount.Value)
	if err != nil {
		return application.NewUpstreamProtocolError(fmt.Sprintf("refund %s has invalid amount %q", res.ID, res.Amount.Value))
	}
	currency, err := domain.ParseCurrency(res.Amount.CurrencyCode)
	if err != nil {
		return err
	}

	payment, err := s.paymentRepo.FindByGatewayTransactionID(ctx, captureID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return application.NewInternalInconsistencyError(
				fmt.Sprintf("refund %s references unknown capture %s", res.ID, captureID))
		}
		return err
	}

	refundAmount, err := payment.ToPaymentCurrency(amount, currency)
	if err != nil {
		return err
	}

	updated, changed, err := s.mutate(ctx, s.paymentRepo, payment, func(p *domain.Payment) (bool, error) {
		return p.ApplyGatewayRefund(uuid.NewString(), res.ID, refundAmount, s.now())
	})
	if err != nil {
		return err
	}

	if changed {
		s.publish(ctx, domain.EventPaymentRefunded, updated)
		s.logger.Info("refund applied by webhook",
			"payment_id", updated.ID,
			"gateway_refund_id", res.ID,
			"amount", refundAmount.String(),
			"total_refunded", updated.TotalRefunded.String(),
		)
	}
	return nil
}

// findByCapture looks the payment up by capture id, then by gateway order id.
// A miss is reported as an inconsistency, which the caller logs and acknowledges.
func (s *WebhookService) findByCapture(ctx context.Context, captureID, gatewayOrderID string) (*domain.Payment, error) {
	if captureID != "" {
		payment, err := s.paymentRepo.FindByGatewayTransactionID(ctx, captureID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, err
		}
	}

	if gatewayOrderID != "" {
		payment, err := s.paymentRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, err
		}
	}

	return nil, application.NewInternalInconsistencyError(
		fmt.Sprintf("no payment for capture %q (gateway order %q)", captureID, gatewayOrderID))
}

func decodeResource(raw json.RawMessage) (*captureResource, error) {
	var res captureResource
	if len(raw) == 0 {
		return nil, application.NewUpstreamProtocolError("webhook event has no resource")
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, application.NewUpstreamProtocolError(fmt.Sprintf("decode webhook resource: %v", err))
	}
	return &res, nil
}

// captureIDFromLinks reads the capture id from the refund's "up" link (…/v2/payments/captures/{id}).
func captureIDFromLinks(links []domain.Link) string {
	for _, l := range links {
		if l.Rel != "up" {
			continue
		}
		href := strings.TrimRight(l.Href, "/")
		if i := strings.LastIndex(href, "/"); i >= 0 && strings.Contains(href, "/captures/") {
			return href[i+1:]
		}
	}
	return ""
}
