package paypal

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
)

// RetryClient retries transient PayPal failures with exponential backoff. Every wrapped
// call is safe to repeat: creates and captures carry a PayPal-Request-Id.
type RetryClient struct {
	inner      application.GatewayClient
	baseDelay  time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewRetryClient(inner application.GatewayClient, cfg config.RetryConfig, logger *slog.Logger) *RetryClient {
	maxRetries := int(cfg.MaxRetries)
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryClient{
		inner:      inner,
		baseDelay:  time.Duration(cfg.BaseDelay) * time.Millisecond,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

func (r *RetryClient) CreateOrder(ctx context.Context, req application.CreateOrderRequest) (*application.GatewayOrder, error) {
	return retry(r, ctx, "create_order", func(ctx context.Context) (*application.GatewayOrder, error) {
		return r.inner.CreateOrder(ctx, req)
	})
}

func (r *RetryClient) CaptureOrder(ctx context.Context, gatewayOrderID string) (*application.CaptureResult, error) {
	return retry(r, ctx, "capture_order", func(ctx context.Context) (*application.CaptureResult, error) {
		return r.inner.CaptureOrder(ctx, gatewayOrderID)
	})
}

func (r *RetryClient) GetOrder(ctx context.Context, gatewayOrderID string) (*application.CaptureResult, error) {
	return retry(r, ctx, "get_order", func(ctx context.Context) (*application.CaptureResult, error) {
		return r.inner.GetOrder(ctx, gatewayOrderID)
	})
}

// Generic retry helper
func retry[T any](r *RetryClient, ctx context.Context, operation string, call func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		resp, err := call(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !application.IsRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			delay := r.backoff(attempt)
			r.logger.Warn("retrying paypal call",
				"operation", operation,
				"attempt", attempt+1,
				"delay", delay,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(delay):
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// Backoff calculation with exponential delay and jitter
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)
	if r.baseDelay <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int64N(int64(r.baseDelay)))
	return base + jitter
}
