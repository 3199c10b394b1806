package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, payment_id, user_id, items, amount::text, currency, market, status, created_at`

type OrderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrGet inserts the order unless the payment already has one, in which case the
// stored order is returned. The unique payment_id column decides races.
func (r *OrderRepository) CreateOrGet(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	m, err := toOrderModel(order)
	if err != nil {
		return nil, err
	}

	row := r.db.Pool.QueryRow(ctx, `
		INSERT INTO orders (id, payment_id, user_id, items, amount, currency, market, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (payment_id) DO NOTHING
		RETURNING `+orderColumns,
		m.ID, m.PaymentID, m.UserID, m.Items, m.Amount, m.Currency, m.Market, m.Status, m.CreatedAt,
	)

	stored, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.FindByPaymentID(ctx, order.PaymentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return toDomainOrder(stored)
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, id, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return r.findOne(ctx, paymentID, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
}

func (r *OrderRepository) findOne(ctx context.Context, key, query string, args ...any) (*domain.Order, error) {
	m, err := scanOrder(r.db.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewOrderNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toDomainOrder(m)
}

func scanOrder(row pgx.Row) (*OrderModel, error) {
	var m OrderModel
	err := row.Scan(&m.ID, &m.PaymentID, &m.UserID, &m.Items, &m.Amount, &m.Currency, &m.Market, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
