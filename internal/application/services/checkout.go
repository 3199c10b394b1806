package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutConfig holds the defaults sent to PayPal when the buyer does not supply them.
type CheckoutConfig struct {
	BrandName string
	ReturnURL string
	CancelURL string
}

type CheckoutService struct {
	lifecycle
	paymentRepo application.PaymentRepository
	orderRepo   application.OrderRepository
	users       application.UserDirectory
	gateway     application.GatewayClient
	card        application.CardAuthorizer
	idempotency application.IdempotencyStore
	cfg         CheckoutConfig
	validate    *validator.Validate
}

func NewCheckoutService(
	paymentRepo application.PaymentRepository,
	orderRepo application.OrderRepository,
	users application.UserDirectory,
	gateway application.GatewayClient,
	card application.CardAuthorizer,
	idempotency application.IdempotencyStore,
	cfg CheckoutConfig,
	logger *slog.Logger,
	opts ...Option,
) *CheckoutService {
	return &CheckoutService{
		lifecycle:   newLifecycle(logger, opts),
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		users:       users,
		gateway:     gateway,
		card:        card,
		idempotency: idempotency,
		cfg:         cfg,
		validate:    validator.New(),
	}
}

// CreatePayPalPayment opens a PayPal order and stores a pending payment for it.
// Nothing is persisted when PayPal rejects the order.
func (s *CheckoutService) CreatePayPalPayment(
	ctx context.Context,
	cmd CreatePayPalPaymentCommand,
	idempotencyKey string,
) (*PayPalCheckout, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	payment, err := s.newPayment(cmd.UserID, cmd.Amount, cmd.Currency, cmd.Market, domain.MethodPayPal,
		domain.GatewayPayPal, cmd.Breakdown, cmd.Items, nil)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUser(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	payment, replayed, err := s.withIdempotency(ctx, idempotencyKey, cmd, func() (*domain.Payment, error) {
		return s.openPayPalOrder(ctx, payment, cmd)
	})
	if err != nil {
		return nil, err
	}

	checkout := &PayPalCheckout{Payment: payment}
	if data, ok := payment.GatewayData.(*domain.PayPalData); ok {
		checkout.ApprovalURL = data.ApprovalURL
	}

	if !replayed {
		s.metrics.PaymentCreated(string(domain.GatewayPayPal), string(payment.Market))
		s.publish(ctx, domain.EventPaymentCreated, payment)
	}

	return checkout, nil
}

func (s *CheckoutService) openPayPalOrder(
	ctx context.Context,
	payment *domain.Payment,
	cmd CreatePayPalPaymentCommand,
) (*domain.Payment, error) {
	settlement, err := domain.ConvertToSettlement(payment.Amount, payment.Currency)
	if err != nil {
		return nil, err
	}

	req := application.CreateOrderRequest{
		ReferenceID: payment.ID,
		Amount:      settlement,
		Currency:    domain.SettlementCurrency,
		Description: fmt.Sprintf("FicMart order (%s %s)", payment.Amount.StringFixed(2), payment.Currency),
		BrandName:   s.cfg.BrandName,
		ReturnURL:   firstNonEmpty(cmd.ReturnURL, s.cfg.ReturnURL),
		CancelURL:   firstNonEmpty(cmd.CancelURL, s.cfg.CancelURL),
	}

	order, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Error("paypal order creation failed",
			"payment_id", payment.ID,
			"error", err,
		)
		return nil, err
	}

	approvalURL, ok := domain.ApprovalLink(order.Links)
	if !ok {
		return nil, application.NewUpstreamProtocolError(
			fmt.Sprintf("paypal order %s has no approval link", order.ID))
	}

	payment.AttachGatewayOrder(order.ID, &domain.PayPalData{
		OriginalAmount:     payment.Amount,
		OriginalCurrency:   payment.Currency,
		SettlementAmount:   settlement,
		SettlementCurrency: domain.SettlementCurrency,
		ApprovalURL:        approvalURL,
		Links:              order.Links,
	})

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, wrapPersistence(err)
	}

	s.logger.Info("paypal payment created",
		"payment_id", payment.ID,
		"gateway_order_id", order.ID,
	)

	return payment, nil
}

// ChargeCard runs the synchronous card authorization. An approved charge is stored as
// completed together with its order; a declined one stores nothing.
func (s *CheckoutService) ChargeCard(
	ctx context.Context,
	cmd ChargeCardCommand,
	idempotencyKey string,
) (*CheckoutResult, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	data := &domain.CardData{
		Last4:          cmd.Card.Last4(),
		Brand:          cmd.Card.Brand(),
		BillingAddress: cmd.BillingAddress,
	}

	payment, err := s.newPayment(cmd.UserID, cmd.Amount, cmd.Currency, cmd.Market, domain.MethodCard,
		domain.GatewayCardSimulator, cmd.Breakdown, cmd.Items, data)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUser(ctx, cmd.UserID); err != nil {
		return nil, err
	}

	payment, replayed, err := s.withIdempotency(ctx, idempotencyKey, cmd, func() (*domain.Payment, error) {
		return s.authorizeCard(ctx, payment, data, cmd.Card)
	})
	if err != nil {
		return nil, err
	}

	order, err := s.ensureOrder(ctx, s.paymentRepo, s.orderRepo, payment)
	if err != nil {
		return nil, err
	}

	if !replayed {
		s.metrics.PaymentCreated(string(domain.GatewayCardSimulator), string(payment.Market))
		s.publish(ctx, domain.EventPaymentCompleted, payment)
	}

	return &CheckoutResult{Payment: payment, Order: order}, nil
}

func (s *CheckoutService) authorizeCard(
	ctx context.Context,
	payment *domain.Payment,
	data *domain.CardData,
	card application.CardDetails,
) (*domain.Payment, error) {
	auth, err := s.card.Authorize(ctx, application.CardAuthorizationRequest{
		Amount:   payment.Amount,
		Currency: payment.Currency,
		Card:     card,
	})
	if err != nil {
		return nil, err
	}

	if !auth.Approved {
		s.logger.Info("card charge declined",
			"payment_id", payment.ID,
			"decline_code", auth.DeclineCode,
		)
		return nil, application.NewCardDeclinedError(auth.DeclineCode, auth.Message)
	}

	data.AuthorizationCode = auth.AuthorizationCode
	if err := payment.Complete(auth.TransactionID, "Card charge approved", s.now()); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, wrapPersistence(err)
	}

	s.logger.Info("card payment completed",
		"payment_id", payment.ID,
		"transaction_id", auth.TransactionID,
	)

	return payment, nil
}

func (s *CheckoutService) newPayment(
	userID string,
	amount decimal.Decimal,
	currency, market string,
	method domain.PaymentMethod,
	gateway domain.Gateway,
	breakdown *domain.Breakdown,
	items []domain.LineItem,
	data domain.GatewayData,
) (*domain.Payment, error) {
	cur, err := domain.ParseCurrency(currency)
	if err != nil {
		return nil, err
	}
	mkt, err := domain.ParseMarket(market)
	if err != nil {
		return nil, err
	}

	return domain.NewPayment(domain.NewPaymentParams{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		Currency:      cur,
		Market:        mkt,
		PaymentMethod: method,
		Gateway:       gateway,
		Breakdown:     breakdown,
		Items:         items,
		GatewayData:   data,
		Now:           s.now(),
	})
}

func (s *CheckoutService) ensureUser(ctx context.Context, userID string) error {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return application.NewInternalError(err)
	}
	if !exists {
		return domain.NewUserNotFoundError(userID)
	}
	return nil
}

// withIdempotency runs create at most once per key. A replay of a finished request returns the
// stored payment and true. The key is released when create fails so the client can retry.
func (s *CheckoutService) withIdempotency(
	ctx context.Context,
	key string,
	cmd any,
	create func() (*domain.Payment, error),
) (*domain.Payment, bool, error) {
	if key == "" || s.idempotency == nil {
		p, err := create()
		return p, false, err
	}

	requestHash := ComputeHash(cmd)

	existing, reserved, err := s.idempotency.Reserve(ctx, key, requestHash)
	if err != nil {
		return nil, false, application.NewInternalError(err)
	}

	if !reserved {
		if existing.RequestHash != requestHash {
			return nil, false, application.NewIdempotencyMismatchError()
		}
		if existing.PaymentID == "" {
			return nil, false, application.NewRequestProcessingError()
		}
		payment, err := s.paymentRepo.FindByID(ctx, existing.PaymentID)
		if err != nil {
			return nil, false, wrapPersistence(err)
		}
		return payment, true, nil
	}

	payment, err := create()
	if err != nil {
		if relErr := s.idempotency.Release(ctx, key); relErr != nil {
			s.logger.Warn("failed to release idempotency key", "key", key, "error", relErr)
		}
		return nil, false, err
	}

	if err := s.idempotency.Complete(ctx, key, requestHash, payment.ID); err != nil {
		s.logger.Warn("failed to complete idempotency key",
			"key", key,
			"payment_id", payment.ID,
			"error", err,
		)
	}

	return payment, false, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
