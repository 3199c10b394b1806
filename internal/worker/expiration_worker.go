package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
)

// Reconciler settles one stale payment against the gateway.
type Reconciler interface {
	Reconcile(ctx context.Context, p *domain.Payment) error
}

// ExpirationWorker sweeps PayPal payments that stayed pending longer than the approval
// window. Each one is either settled from the gateway's view of the order or cancelled.
type ExpirationWorker struct {
	paymentRepo application.PaymentRepository
	reconciler  Reconciler
	interval    time.Duration
	pendingTTL  time.Duration
	batchSize   int
	logger      *slog.Logger
	now         func() time.Time
}

func NewExpirationWorker(
	paymentRepo application.PaymentRepository,
	reconciler Reconciler,
	interval time.Duration,
	pendingTTL time.Duration,
	batchSize int,
	logger *slog.Logger,
) *ExpirationWorker {
	return &ExpirationWorker{
		paymentRepo: paymentRepo,
		reconciler:  reconciler,
		interval:    interval,
		pendingTTL:  pendingTTL,
		batchSize:   batchSize,
		logger:      logger,
		now:         time.Now,
	}
}

func (w *ExpirationWorker) Start(ctx context.Context) {
	w.logger.Info("expiration worker started",
		"interval", w.interval,
		"pending_ttl", w.pendingTTL,
		"batch_size", w.batchSize,
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration worker stopping")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep and reports how many payments were reconciled.
func (w *ExpirationWorker) RunOnce(ctx context.Context) int {
	cutoff := w.now().Add(-w.pendingTTL)

	stale, err := w.paymentRepo.FindStalePending(ctx, domain.GatewayPayPal, cutoff, w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch stale payments", "error", err)
		return 0
	}

	if len(stale) == 0 {
		return 0
	}

	var reconciled int
	for _, payment := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := w.reconciler.Reconcile(ctx, payment); err != nil {
			w.logger.Error("failed to reconcile stale payment",
				"payment_id", payment.ID,
				"status", payment.Status,
				"error", err,
			)
			continue
		}
		reconciled++
	}

	w.logger.Info("processed stale payments",
		"found", len(stale),
		"reconciled", reconciled,
	)

	return reconciled
}
