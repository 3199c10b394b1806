package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/api"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application/services"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/card"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/events"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/idempotency"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/metrics"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/paypal"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest/middleware"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting payments service",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := postgres.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	paymentRepo := postgres.NewPaymentRepository(db)
	orderRepo := postgres.NewOrderRepository(db)
	userRepo := postgres.NewUserRepository(db)
	webhookEventRepo := postgres.NewWebhookEventRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	paypalClient := paypal.NewClient(cfg.PayPal, logger, paypal.WithObserver(recorder.ObserveGateway))
	retryPayPalClient := paypal.NewRetryClient(paypalClient, cfg.Retry, logger)
	cardSimulator := card.NewSimulator(cfg.Card, logger)

	var idempotencyStore application.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient, err := idempotency.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		idempotencyStore = idempotency.NewRedisStore(redisClient, cfg.Redis)
	} else {
		logger.Warn("redis not configured; Idempotency-Key headers are ignored")
	}

	var publisher application.EventPublisher = events.NewLogPublisher(logger)
	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka, logger)
		if err != nil {
			logger.Error("failed to create kafka producer", "brokers", brokers, "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	opts := []services.Option{
		services.WithPublisher(publisher),
		services.WithMetrics(recorder),
	}

	checkoutService := services.NewCheckoutService(
		paymentRepo,
		orderRepo,
		userRepo,
		retryPayPalClient,
		cardSimulator,
		idempotencyStore,
		services.CheckoutConfig{
			BrandName: cfg.PayPal.BrandName,
			ReturnURL: cfg.PayPal.ReturnURL,
			CancelURL: cfg.PayPal.CancelURL,
		},
		logger,
		opts...,
	)
	captureService := services.NewCaptureService(paymentRepo, orderRepo, retryPayPalClient, logger, opts...)
	webhookService := services.NewWebhookService(paymentRepo, orderRepo, webhookEventRepo, logger, opts...)
	refundService := services.NewRefundService(paymentRepo, logger, opts...)
	queryService := services.NewQueryService(paymentRepo, orderRepo)

	h := handlers.NewHandlers(
		checkoutService,
		captureService,
		webhookService,
		refundService,
		queryService,
		logger,
	)

	doc, err := api.Load()
	if err != nil {
		logger.Error("failed to load openapi document", "error", err)
		os.Exit(1)
	}
	validator, err := middleware.NewRequestValidator(doc)
	if err != nil {
		logger.Error("failed to build request validator", "error", err)
		os.Exit(1)
	}

	routerCfg := handlers.RouterConfig{
		Logger:         logger,
		RequestTimeout: cfg.Server.ReadTimeout,
		Metrics:        recorder,
		DB:             db,
		Validator:      validator,
	}
	if cfg.Webhook.VerifySignatures {
		routerCfg.Verifier = paypalClient
	} else {
		logger.Warn("webhook signature verification disabled")
	}
	if cfg.RateLimit.RPS > 0 {
		routerCfg.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handlers.NewRouter(h, routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	expirationWorker := worker.NewExpirationWorker(
		paymentRepo,
		captureService,
		cfg.Worker.Interval,
		cfg.Worker.PendingTTL,
		cfg.Worker.BatchSize,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go expirationWorker.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
