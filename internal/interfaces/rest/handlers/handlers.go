package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest/middleware"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxRequestBody       = 1 << 20
)

type Handlers struct {
	checkoutService *services.CheckoutService
	captureService  *services.CaptureService
	webhookService  *services.WebhookService
	refundService   *services.RefundService
	queryService    *services.QueryService
	logger          *slog.Logger
	now             func() time.Time
}

func NewHandlers(
	checkoutService *services.CheckoutService,
	captureService *services.CaptureService,
	webhookService *services.WebhookService,
	refundService *services.RefundService,
	queryService *services.QueryService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		checkoutService: checkoutService,
		captureService:  captureService,
		webhookService:  webhookService,
		refundService:   refundService,
		queryService:    queryService,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for derived response fields.
func (h *Handlers) WithClock(now func() time.Time) *Handlers {
	h.now = now
	return h
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	rest.WriteError(w, err, h.logger)
}

// caller is set by middleware.RequireUser on every route that uses it.
func caller(r *http.Request) middleware.Caller {
	c, _ := middleware.CallerFrom(r.Context())
	return c
}

func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return application.NewInvalidInputError(fmt.Errorf("read body: %w", err))
	}
	if len(body) > maxRequestBody {
		return application.NewInvalidInputError(errors.New("request body too large"))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return application.NewInvalidInputError(fmt.Errorf("decode body: %w", err))
	}
	return nil
}
