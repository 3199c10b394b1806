package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/api"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest/middleware"
)

// MetricsRecorder is satisfied by metrics.Recorder.
type MetricsRecorder interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// RouterConfig carries the optional pieces of the HTTP stack. A nil field disables it.
type RouterConfig struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Verifier       application.WebhookVerifier
	RateLimiter    *middleware.RateLimiter
	Metrics        MetricsRecorder
	DB             Pinger
	Validator      *middleware.RequestValidator
}

func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = h.logger
	}

	requireUser := middleware.RequireUser(logger)
	requireAdmin := middleware.RequireAdmin(logger)

	user := func(fn http.HandlerFunc) http.Handler {
		return requireUser(fn)
	}
	admin := func(fn http.HandlerFunc) http.Handler {
		return requireUser(requireAdmin(fn))
	}

	var webhook http.Handler = http.HandlerFunc(h.PayPalWebhook)
	if cfg.Verifier != nil {
		webhook = middleware.VerifyWebhookSignature(cfg.Verifier, logger)(webhook)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/payments/paypal", user(h.CreatePayPalPayment))
	mux.Handle("POST /api/v1/payments/card", user(h.ChargeCard))
	mux.Handle("POST /api/v1/payments/paypal/{gatewayOrderId}/capture", user(h.CapturePayPalPayment))
	mux.Handle("POST /api/v1/payments/{id}/refunds", admin(h.RefundPayment))
	mux.Handle("GET /api/v1/payments/{id}", user(h.GetPayment))
	mux.Handle("GET /api/v1/payments", user(h.ListPayments))
	mux.HandleFunc("GET /api/v1/fees/quote", h.QuoteFee)
	mux.Handle("POST /api/v1/webhooks/paypal", webhook)
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz(cfg.DB))
	api.RegisterDocsRoutes(mux)

	var handler http.Handler = mux
	if cfg.Validator != nil {
		handler = cfg.Validator.Middleware(logger)(handler)
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
		// wraps the mux and validator only, so the matched pattern is visible after ServeHTTP
		handler = cfg.Metrics.Middleware(handler)
	}
	if cfg.RequestTimeout > 0 {
		handler = middleware.Timeout(cfg.RequestTimeout)(handler)
	}
	if cfg.RateLimiter != nil {
		handler = cfg.RateLimiter.Middleware(logger)(handler)
	}
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
