package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/google/uuid"
)

// maxConcurrentRetries bounds how often a conditional update is re-applied after losing a race.
const maxConcurrentRetries = 3

func ComputeHash(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = fmt.Appendf(nil, "%+v", v)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// Option customizes the collaborators shared by every service.
type Option func(*lifecycle)

func WithClock(now func() time.Time) Option {
	return func(l *lifecycle) { l.now = now }
}

func WithPublisher(p application.EventPublisher) Option {
	return func(l *lifecycle) { l.publisher = p }
}

func WithMetrics(m application.Metrics) Option {
	return func(l *lifecycle) { l.metrics = m }
}

// lifecycle carries the clock, event publisher, metrics and logger, plus the
// conditional-update loop every state-changing service goes through.
type lifecycle struct {
	publisher application.EventPublisher
	metrics   application.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func newLifecycle(logger *slog.Logger, opts []Option) lifecycle {
	l := lifecycle{
		metrics: application.NoopMetrics{},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// publish never fails the caller; lifecycle events are best effort.
func (l *lifecycle) publish(ctx context.Context, eventType domain.EventType, p *domain.Payment) {
	if l.publisher == nil {
		return
	}
	event := domain.NewPaymentEvent(eventType, p, l.now())
	if err := l.publisher.Publish(ctx, event); err != nil {
		l.logger.Warn("failed to publish payment event",
			"event_type", eventType,
			"payment_id", p.ID,
			"error", err,
		)
	}
}

// mutate applies fn and writes the payment only if nobody changed it since it was loaded.
// On a lost race the payment is reloaded and fn re-applied. fn reports whether it changed anything;
// when it did not, nothing is written and the payment is returned as is.
func (l *lifecycle) mutate(
	ctx context.Context,
	repo application.PaymentRepository,
	payment *domain.Payment,
	fn func(p *domain.Payment) (bool, error),
) (*domain.Payment, bool, error) {
	for attempt := 1; ; attempt++ {
		expected := payment.Status

		changed, err := fn(payment)
		if err != nil || !changed {
			return payment, false, err
		}

		err = repo.UpdateIfStatus(ctx, payment, expected)
		if err == nil {
			return payment, true, nil
		}
		if !errors.Is(err, domain.ErrConcurrentModification) || attempt >= maxConcurrentRetries {
			return nil, false, err
		}

		l.logger.Warn("concurrent payment update, reloading",
			"payment_id", payment.ID,
			"attempt", attempt,
		)

		payment, err = repo.FindByID(ctx, payment.ID)
		if err != nil {
			return nil, false, err
		}
	}
}

// ensureOrder returns the order of a settled payment, creating and linking it if needed.
func (l *lifecycle) ensureOrder(
	ctx context.Context,
	payments application.PaymentRepository,
	orders application.OrderRepository,
	payment *domain.Payment,
) (*domain.Order, error) {
	if payment.OrderID != nil {
		order, err := orders.FindByID(ctx, *payment.OrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, application.NewInternalError(err)
		}
	}

	order, err := domain.NewOrderFromPayment(uuid.NewString(), payment, l.now())
	if err != nil {
		return nil, err
	}

	order, err = orders.CreateOrGet(ctx, order)
	if err != nil {
		return nil, application.NewInternalError(err)
	}

	if payment.OrderID == nil || *payment.OrderID != order.ID {
		if err := payments.LinkOrder(ctx, payment.ID, order.ID); err != nil {
			return nil, application.NewInternalError(err)
		}
		payment.LinkOrder(order.ID)
	}

	return order, nil
}

// wrapPersistence leaves domain errors alone and marks everything else as internal.
func wrapPersistence(err error) error {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return application.NewInternalError(err)
}
