package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/jackc/pgx/v5"
)

const transactionIDIndex = "uq_payments_gateway_transaction_id"

const paymentColumns = `
	id, order_id, user_id,
	amount::text, currency, market,
	subtotal::text, tax_amount::text, shipping_amount::text, discount_amount::text, items,
	payment_method, gateway, gateway_order_id, gateway_transaction_id,
	fee_percentage::text, fee_fixed::text, fee_total::text, gateway_data,
	status, total_refunded::text, failure,
	paid_at, created_at, updated_at, version`

// PaymentRepository stores the payment row plus its append-only history and refund rows.
// Child rows are keyed by (payment_id, seq) so rewriting the aggregate only adds the tail.
type PaymentRepository struct {
	db *DB
}

func NewPaymentRepository(db *DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (
			id, order_id, user_id, amount, currency, market,
			subtotal, tax_amount, shipping_amount, discount_amount, items,
			payment_method, gateway, gateway_order_id, gateway_transaction_id,
			fee_percentage, fee_fixed, fee_total, gateway_data,
			status, total_refunded, failure, paid_at, created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		          $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, 1)
	`

	m, err := toDBModel(payment)
	if err != nil {
		return err
	}

	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			m.ID, m.OrderID, m.UserID, m.Amount, m.Currency, m.Market,
			m.Subtotal, m.TaxAmount, m.ShippingAmount, m.DiscountAmount, m.Items,
			m.PaymentMethod, m.Gateway, m.GatewayOrderID, m.GatewayTransactionID,
			m.FeePercentage, m.FeeFixed, m.FeeTotal, m.GatewayData,
			m.Status, m.TotalRefunded, m.Failure, m.PaidAt, m.CreatedAt, m.UpdatedAt,
		)
		if err != nil {
			return r.mapWriteError(payment, err)
		}
		return writeChildren(ctx, tx, payment)
	})
	if err != nil {
		return err
	}

	payment.Version = 1
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.findOne(ctx, id, `SELECT`+paymentColumns+` FROM payments WHERE id = $1`, id)
}

func (r *PaymentRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	return r.findOne(ctx, gatewayOrderID, `SELECT`+paymentColumns+` FROM payments WHERE gateway_order_id = $1`, gatewayOrderID)
}

func (r *PaymentRepository) FindByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	return r.findOne(ctx, transactionID, `SELECT`+paymentColumns+` FROM payments WHERE gateway_transaction_id = $1`, transactionID)
}

func (r *PaymentRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Payment, error) {
	query := `SELECT` + paymentColumns + `
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	return r.findMany(ctx, query, userID, limit, offset)
}

// FindStalePending returns payments still waiting on the gateway, oldest first.
func (r *PaymentRepository) FindStalePending(ctx context.Context, gateway domain.Gateway, createdBefore time.Time, limit int) ([]*domain.Payment, error) {
	query := `SELECT` + paymentColumns + `
		FROM payments
		WHERE gateway = $1
		  AND status IN ('pending', 'processing')
		  AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`

	return r.findMany(ctx, query, string(gateway), createdBefore, limit)
}

// UpdateIfStatus writes the aggregate only if the stored row still has the expected status
// and the version the caller loaded. A stored order link is never cleared.
func (r *PaymentRepository) UpdateIfStatus(ctx context.Context, payment *domain.Payment, expected domain.PaymentStatus) error {
	query := `
		UPDATE payments SET
			order_id = COALESCE(order_id, $2),
			gateway_order_id = $3,
			gateway_transaction_id = $4,
			gateway_data = $5,
			status = $6,
			total_refunded = $7,
			failure = $8,
			paid_at = $9,
			updated_at = $10,
			version = version + 1
		WHERE id = $1 AND status = $11 AND version = $12
		RETURNING version, order_id
	`

	m, err := toDBModel(payment)
	if err != nil {
		return err
	}

	var (
		version int64
		orderID *string
	)
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			m.ID, m.OrderID, m.GatewayOrderID, m.GatewayTransactionID, m.GatewayData,
			m.Status, m.TotalRefunded, m.Failure, m.PaidAt, m.UpdatedAt,
			string(expected), m.Version,
		).Scan(&version, &orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrConflict(ctx, tx, payment.ID)
		}
		if err != nil {
			return r.mapWriteError(payment, err)
		}
		return writeChildren(ctx, tx, payment)
	})
	if err != nil {
		return err
	}

	payment.Version = version
	payment.OrderID = orderID
	return nil
}

// LinkOrder sets order_id once. It does not bump the version.
func (r *PaymentRepository) LinkOrder(ctx context.Context, paymentID, orderID string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE payments SET order_id = COALESCE(order_id, $2) WHERE id = $1`,
		paymentID, orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to link order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewPaymentNotFoundError(paymentID)
	}
	return nil
}

func (r *PaymentRepository) missOrConflict(ctx context.Context, q Executor, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check payment: %w", err)
	}
	if !exists {
		return domain.NewPaymentNotFoundError(id)
	}
	return domain.NewConcurrentModificationError(id)
}

func (r *PaymentRepository) mapWriteError(payment *domain.Payment, err error) error {
	if violatedConstraint(err) == transactionIDIndex && payment.GatewayTransactionID != nil {
		return domain.NewDuplicateTransactionError(*payment.GatewayTransactionID, err)
	}
	return fmt.Errorf("failed to write payment: %w", err)
}

func (r *PaymentRepository) findOne(ctx context.Context, key, query string, args ...any) (*domain.Payment, error) {
	m, err := scanPayment(r.db.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewPaymentNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	payments, err := r.hydrate(ctx, []*PaymentModel{m})
	if err != nil {
		return nil, err
	}
	return payments[0], nil
}

func (r *PaymentRepository) findMany(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}

	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*PaymentModel, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan payments: %w", err)
	}

	return r.hydrate(ctx, models)
}

// hydrate loads the child rows of every model with one query per child table.
func (r *PaymentRepository) hydrate(ctx context.Context, models []*PaymentModel) ([]*domain.Payment, error) {
	if len(models) == 0 {
		return []*domain.Payment{}, nil
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}

	history, err := r.loadHistory(ctx, ids)
	if err != nil {
		return nil, err
	}
	refunds, err := r.loadRefunds(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Payment, 0, len(models))
	for _, m := range models {
		p, err := toDomainModel(m, history[m.ID], refunds[m.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *PaymentRepository) loadHistory(ctx context.Context, ids []string) (map[string][]StatusChangeModel, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT payment_id, seq, status, reason, performed_by, created_at
		FROM payment_status_history
		WHERE payment_id = ANY($1)
		ORDER BY payment_id, seq`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatusChangeModel, error) {
		var h StatusChangeModel
		err := row.Scan(&h.PaymentID, &h.Seq, &h.Status, &h.Reason, &h.PerformedBy, &h.CreatedAt)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan status history: %w", err)
	}

	byPayment := make(map[string][]StatusChangeModel, len(ids))
	for _, h := range entries {
		byPayment[h.PaymentID] = append(byPayment[h.PaymentID], h)
	}
	return byPayment, nil
}

func (r *PaymentRepository) loadRefunds(ctx context.Context, ids []string) (map[string][]RefundModel, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT payment_id, seq, id, amount::text, currency, reason, status, gateway_refund_id, processed_at
		FROM payment_refunds
		WHERE payment_id = ANY($1)
		ORDER BY payment_id, seq`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query refunds: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RefundModel, error) {
		var m RefundModel
		err := row.Scan(&m.PaymentID, &m.Seq, &m.ID, &m.Amount, &m.Currency, &m.Reason,
			&m.Status, &m.GatewayRefundID, &m.ProcessedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan refunds: %w", err)
	}

	byPayment := make(map[string][]RefundModel, len(ids))
	for _, m := range entries {
		byPayment[m.PaymentID] = append(byPayment[m.PaymentID], m)
	}
	return byPayment, nil
}

// writeChildren appends history entries that are not stored yet and upserts refunds,
// whose status and gateway id change when a pending refund settles.
func writeChildren(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	batch := &pgx.Batch{}
	for i, h := range p.StatusHistory {
		batch.Queue(`
			INSERT INTO payment_status_history (payment_id, seq, status, reason, performed_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (payment_id, seq) DO NOTHING`,
			p.ID, i+1, string(h.Status), h.Reason, h.PerformedBy, h.Timestamp,
		)
	}
	for i, rf := range p.Refunds {
		batch.Queue(`
			INSERT INTO payment_refunds (payment_id, seq, id, amount, currency, reason, status, gateway_refund_id, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (payment_id, seq) DO UPDATE
			SET status = EXCLUDED.status, gateway_refund_id = EXCLUDED.gateway_refund_id`,
			p.ID, i+1, rf.ID, rf.Amount.StringFixed(2), string(rf.Currency), rf.Reason,
			string(rf.Status), rf.GatewayRefundID, rf.ProcessedAt,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to write payment children: %w", err)
	}
	return nil
}

func scanPayment(row pgx.Row) (*PaymentModel, error) {
	var m PaymentModel
	err := row.Scan(
		&m.ID, &m.OrderID, &m.UserID,
		&m.Amount, &m.Currency, &m.Market,
		&m.Subtotal, &m.TaxAmount, &m.ShippingAmount, &m.DiscountAmount, &m.Items,
		&m.PaymentMethod, &m.Gateway, &m.GatewayOrderID, &m.GatewayTransactionID,
		&m.FeePercentage, &m.FeeFixed, &m.FeeTotal, &m.GatewayData,
		&m.Status, &m.TotalRefunded, &m.Failure,
		&m.PaidAt, &m.CreatedAt, &m.UpdatedAt, &m.Version,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
