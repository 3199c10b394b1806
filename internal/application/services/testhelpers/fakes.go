package testhelpers

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
)

// PaymentStore is an in-memory PaymentRepository with the same conditional-update
// and uniqueness rules as the Postgres one. Stored payments are copied in and out.
type PaymentStore struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment

	// BeforeUpdate runs before every conditional update; returning an error aborts it.
	BeforeUpdate func(p *domain.Payment) error
	Updates      int
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{payments: make(map[string]*domain.Payment)}
}

func (s *PaymentStore) Create(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTransactionID(p); err != nil {
		return err
	}
	p.Version = 1
	s.payments[p.ID] = ClonePayment(p)
	return nil
}

// Put stores a payment as is, for seeding tests.
func (s *PaymentStore) Put(p *domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = ClonePayment(p)
}

func (s *PaymentStore) FindByID(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, domain.NewPaymentNotFoundError(id)
	}
	return ClonePayment(p), nil
}

func (s *PaymentStore) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*domain.Payment, error) {
	return s.findOne(gatewayOrderID, func(p *domain.Payment) bool {
		return p.GatewayOrderID != nil && *p.GatewayOrderID == gatewayOrderID
	})
}

func (s *PaymentStore) FindByGatewayTransactionID(_ context.Context, transactionID string) (*domain.Payment, error) {
	return s.findOne(transactionID, func(p *domain.Payment) bool {
		return p.GatewayTransactionID != nil && *p.GatewayTransactionID == transactionID
	})
}

func (s *PaymentStore) FindByUserID(_ context.Context, userID string, limit, offset int) ([]*domain.Payment, error) {
	matches := s.findAll(func(p *domain.Payment) bool { return p.UserID == userID })
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if offset >= len(matches) {
		return []*domain.Payment{}, nil
	}
	end := min(offset+limit, len(matches))
	return matches[offset:end], nil
}

func (s *PaymentStore) FindStalePending(_ context.Context, gateway domain.Gateway, createdBefore time.Time, limit int) ([]*domain.Payment, error) {
	matches := s.findAll(func(p *domain.Payment) bool {
		return p.Gateway == gateway &&
			(p.Status == domain.StatusPending || p.Status == domain.StatusProcessing) &&
			p.CreatedAt.Before(createdBefore)
	})
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *PaymentStore) UpdateIfStatus(_ context.Context, p *domain.Payment, expected domain.PaymentStatus) error {
	if s.BeforeUpdate != nil {
		if err := s.BeforeUpdate(p); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.payments[p.ID]
	if !ok {
		return domain.NewPaymentNotFoundError(p.ID)
	}
	if stored.Status != expected || stored.Version != p.Version {
		return domain.NewConcurrentModificationError(p.ID)
	}
	if err := s.checkTransactionID(p); err != nil {
		return err
	}

	p.Version++
	if stored.OrderID != nil && p.OrderID == nil {
		p.OrderID = stored.OrderID
	}
	s.payments[p.ID] = ClonePayment(p)
	s.Updates++
	return nil
}

func (s *PaymentStore) LinkOrder(_ context.Context, paymentID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.payments[paymentID]
	if !ok {
		return domain.NewPaymentNotFoundError(paymentID)
	}
	if stored.OrderID == nil {
		id := orderID
		stored.OrderID = &id
	}
	return nil
}

// Status returns the stored status, or "" when the payment does not exist.
func (s *PaymentStore) Status(id string) domain.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		return p.Status
	}
	return ""
}

func (s *PaymentStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *PaymentStore) checkTransactionID(p *domain.Payment) error {
	if p.GatewayTransactionID == nil {
		return nil
	}
	for id, other := range s.payments {
		if id != p.ID && other.GatewayTransactionID != nil && *other.GatewayTransactionID == *p.GatewayTransactionID {
			return domain.NewDuplicateTransactionError(*p.GatewayTransactionID, nil)
		}
	}
	return nil
}

func (s *PaymentStore) findOne(key string, match func(*domain.Payment) bool) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if match(p) {
			return ClonePayment(p), nil
		}
	}
	return nil, domain.NewPaymentNotFoundError(key)
}

func (s *PaymentStore) findAll(match func(*domain.Payment) bool) []*domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range s.payments {
		if match(p) {
			out = append(out, ClonePayment(p))
		}
	}
	return out
}

// ClonePayment deep-copies everything a service may mutate.
func ClonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	c.OrderID = cloneString(p.OrderID)
	c.GatewayOrderID = cloneString(p.GatewayOrderID)
	c.GatewayTransactionID = cloneString(p.GatewayTransactionID)
	c.Items = slices.Clone(p.Items)
	c.StatusHistory = slices.Clone(p.StatusHistory)
	c.Refunds = make([]domain.Refund, len(p.Refunds))
	for i, r := range p.Refunds {
		r.GatewayRefundID = cloneString(r.GatewayRefundID)
		c.Refunds[i] = r
	}
	if p.Failure != nil {
		f := *p.Failure
		c.Failure = &f
	}
	if p.PaidAt != nil {
		t := *p.PaidAt
		c.PaidAt = &t
	}
	switch data := p.GatewayData.(type) {
	case *domain.PayPalData:
		d := *data
		d.Links = slices.Clone(data.Links)
		if data.Payer != nil {
			payer := *data.Payer
			d.Payer = &payer
		}
		c.GatewayData = &d
	case *domain.CardData:
		d := *data
		c.GatewayData = &d
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// OrderStore is an in-memory OrderRepository keeping one order per payment.
type OrderStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	byPayment map[string]string
}

func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:    make(map[string]*domain.Order),
		byPayment: make(map[string]string),
	}
}

func (s *OrderStore) CreateOrGet(_ context.Context, order *domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPayment[order.PaymentID]; ok {
		existing := *s.orders[id]
		return &existing, nil
	}
	stored := *order
	s.orders[order.ID] = &stored
	s.byPayment[order.PaymentID] = order.ID
	return order, nil
}

func (s *OrderStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.NewOrderNotFoundError(id)
	}
	c := *o
	return &c, nil
}

func (s *OrderStore) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	s.mu.Lock()
	id, ok := s.byPayment[paymentID]
	s.mu.Unlock()
	if !ok {
		return nil, domain.NewOrderNotFoundError(paymentID)
	}
	return s.FindByID(ctx, id)
}

func (s *OrderStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// UserDirectory knows a fixed set of users unless ExistsFn overrides it.
type UserDirectory struct {
	Users    map[string]bool
	ExistsFn func(ctx context.Context, userID string) (bool, error)
}

func NewUserDirectory(userIDs ...string) *UserDirectory {
	users := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		users[id] = true
	}
	return &UserDirectory{Users: users}
}

func (d *UserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	if d.ExistsFn != nil {
		return d.ExistsFn(ctx, userID)
	}
	return d.Users[userID], nil
}

type WebhookEventStore struct {
	mu          sync.Mutex
	processed   map[string]string
	IsProcessFn func(ctx context.Context, eventID string) (bool, error)
}

func NewWebhookEventStore() *WebhookEventStore {
	return &WebhookEventStore{processed: make(map[string]string)}
}

func (s *WebhookEventStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if s.IsProcessFn != nil {
		return s.IsProcessFn(ctx, eventID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[eventID]
	return ok, nil
}

func (s *WebhookEventStore) MarkProcessed(_ context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[eventID] = eventType
	return nil
}

func (s *WebhookEventStore) Processed(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[eventID]
	return ok
}

type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]application.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{records: make(map[string]application.IdempotencyRecord)}
}

func (s *IdempotencyStore) Reserve(_ context.Context, key, requestHash string) (*application.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[key]; ok {
		return &rec, false, nil
	}
	s.records[key] = application.IdempotencyRecord{RequestHash: requestHash}
	return nil, true, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, key, requestHash, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = application.IdempotencyRecord{RequestHash: requestHash, PaymentID: paymentID}
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, event domain.PaymentEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

func (p *RecordingPublisher) Types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

// CardAuthorizer answers with AuthorizeFn.
type CardAuthorizer struct {
	AuthorizeFn func(ctx context.Context, req application.CardAuthorizationRequest) (*application.CardAuthorization, error)
	Calls       int
}

func (a *CardAuthorizer) Authorize(ctx context.Context, req application.CardAuthorizationRequest) (*application.CardAuthorization, error) {
	a.Calls++
	return a.AuthorizeFn(ctx, req)
}

func ApprovingCard(transactionID string) *CardAuthorizer {
	return &CardAuthorizer{
		AuthorizeFn: func(context.Context, application.CardAuthorizationRequest) (*application.CardAuthorization, error) {
			return &application.CardAuthorization{
				Approved:          true,
				TransactionID:     transactionID,
				AuthorizationCode: "AUTH01",
			}, nil
		},
	}
}

func DecliningCard() *CardAuthorizer {
	return &CardAuthorizer{
		AuthorizeFn: func(context.Context, application.CardAuthorizationRequest) (*application.CardAuthorization, error) {
			return &application.CardAuthorization{
				DeclineCode: "do_not_honor",
				Message:     "Card declined by issuer",
			}, nil
		},
	}
}
