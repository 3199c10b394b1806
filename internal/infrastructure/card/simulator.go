// Package card simulates a synchronous card processor.
package card

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
	"github.com/google/uuid"
)

const (
	DeclineDoNotHonor = "do_not_honor"
	DeclineExpired    = "expired_card"
)

type Option func(*Simulator)

// WithSeed makes approvals reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// Simulator approves each authorization with probability approvalRate.
// Expired cards are always declined.
type Simulator struct {
	approvalRate float64
	logger       *slog.Logger
	now          func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulator(cfg config.CardConfig, logger *slog.Logger, opts ...Option) *Simulator {
	s := &Simulator{
		approvalRate: cfg.ApprovalRate,
		logger:       logger,
		now:          time.Now,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Authorize(ctx context.Context, req application.CardAuthorizationRequest) (*application.CardAuthorization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.expired(req.Card) {
		s.logger.Info("card authorization declined", "reason", DeclineExpired, "last4", req.Card.Last4())
		return &application.CardAuthorization{
			DeclineCode: DeclineExpired,
			Message:     "Card has expired",
		}, nil
	}

	s.mu.Lock()
	draw := s.rng.Float64()
	s.mu.Unlock()

	if draw >= s.approvalRate {
		s.logger.Info("card authorization declined", "reason", DeclineDoNotHonor, "last4", req.Card.Last4())
		return &application.CardAuthorization{
			DeclineCode: DeclineDoNotHonor,
			Message:     "Card declined by issuer",
		}, nil
	}

	id := uuid.New()
	return &application.CardAuthorization{
		Approved:          true,
		TransactionID:     "card_" + id.String(),
		AuthorizationCode: strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6]),
	}, nil
}

// expired treats a card as valid through the last day of its expiry month.
func (s *Simulator) expired(c application.CardDetails) bool {
	now := s.now()
	firstOfNextMonth := time.Date(c.ExpiryYear, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.Before(firstOfNextMonth)
}
