package domain_test

import (
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createPendingPayment(t *testing.T, amount string) *domain.Payment {
	t.Helper()

	p, err := domain.NewPayment(domain.NewPaymentParams{
		ID:            "pay-123",
		UserID:        "user-1",
		Amount:        dec(amount),
		Currency:      domain.CurrencyGBP,
		Market:        domain.MarketGB,
		PaymentMethod: domain.MethodCard,
		Gateway:       domain.GatewayCardSimulator,
		Now:           now,
	})
	require.NoError(t, err)
	return p
}

func createCompletedPayment(t *testing.T, amount string) *domain.Payment {
	t.Helper()

	p := createPendingPayment(t, amount)
	require.NoError(t, p.Complete("txn-1", "", now))
	return p
}

func TestNewPayment(t *testing.T) {
	t.Run("creates pending payment with fee and first history entry", func(t *testing.T) {
		p := createPendingPayment(t, "100.00")

		assert.Equal(t, domain.StatusPending, p.Status)
		assert.Equal(t, "3.2", p.GatewayFee.Total.String())
		assert.True(t, p.TotalRefunded.IsZero())
		require.Len(t, p.StatusHistory, 1)
		assert.Equal(t, domain.StatusPending, p.StatusHistory[0].Status)
		assert.Equal(t, "user-1", p.StatusHistory[0].PerformedBy)
		assert.Nil(t, p.GatewayTransactionID)
		assert.Nil(t, p.OrderID)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := domain.NewPayment(domain.NewPaymentParams{
			ID: "pay-1", UserID: "user-1", Amount: decimal.Zero, Currency: domain.CurrencyUSD, Now: now,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		_, err := domain.NewPayment(domain.NewPaymentParams{
			ID: "pay-1", UserID: "user-1", Amount: dec("-5.00"), Currency: domain.CurrencyUSD, Now: now,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("rejects sub-cent amount", func(t *testing.T) {
		_, err := domain.NewPayment(domain.NewPaymentParams{
			ID: "pay-1", UserID: "user-1", Amount: dec("10.001"), Currency: domain.CurrencyUSD, Now: now,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("rejects empty user", func(t *testing.T) {
		_, err := domain.NewPayment(domain.NewPaymentParams{
			ID: "pay-1", Amount: dec("10.00"), Currency: domain.CurrencyUSD, Now: now,
		})
		assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
		assert.Contains(t, err.Error(), "user ID is required")
	})

	t.Run("defaults market", func(t *testing.T) {
		p, err := domain.NewPayment(domain.NewPaymentParams{
			ID: "pay-1", UserID: "user-1", Amount: dec("10.00"), Currency: domain.CurrencyUSD, Now: now,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultMarket, p.Market)
	})

	t.Run("applies a consistent breakdown", func(t *testing.T) {
		p, err := domain.NewPayment(domain.NewPaymentParams{
			ID: "pay-1", UserID: "user-1", Amount: dec("125.00"), Currency: domain.CurrencyGBP,
			Breakdown: &domain.Breakdown{Subtotal: dec("100.00"), Shipping: dec("10.00"), Discount: dec("5.00")},
			Now:       now,
		})
		require.NoError(t, err)
		assert.Equal(t, "20", p.TaxAmount.String())
		assert.Equal(t, "100", p.Subtotal.String())
	})

	t.Run("rejects a breakdown that does not add up", func(t *testing.T) {
		_, err := domain.NewPayment(domain.NewPaymentParams{
			ID: "pay-1", UserID: "user-1", Amount: dec("100.00"), Currency: domain.CurrencyGBP,
			Breakdown: &domain.Breakdown{Subtotal: dec("100.00")},
			Now:       now,
		})
		assert.ErrorIs(t, err, domain.ErrAmountMismatch)
	})
}

func TestPayment_DerivedFields(t *testing.T) {
	p := createCompletedPayment(t, "100.00")

	assert.Equal(t, "96.8", p.NetAmount().String())
	assert.Equal(t, "100", p.RefundableAmount().String())
	assert.True(t, p.IsRefundable(now))
	assert.Equal(t, now.Add(domain.RefundWindow), p.RefundWindowEnd())
}

func TestPayment_RecalculateFee(t *testing.T) {
	p := createPendingPayment(t, "100.00")

	p.PaymentMethod = domain.MethodPayPal
	p.Market = domain.MarketEU
	p.RecalculateFee()

	assert.Equal(t, "3.4", p.GatewayFee.Percentage.String())
	assert.Equal(t, "0.35", p.GatewayFee.Fixed.String())
	assert.Equal(t, "3.75", p.GatewayFee.Total.String())
}

func TestPayment_StateTransitions(t *testing.T) {
	t.Run("complete stamps paidAt and transaction id once", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")

		require.NoError(t, p.Complete("txn-1", "Captured", now))

		assert.Equal(t, domain.StatusCompleted, p.Status)
		require.NotNil(t, p.PaidAt)
		assert.Equal(t, now, *p.PaidAt)
		assert.Equal(t, "txn-1", *p.GatewayTransactionID)
		require.Len(t, p.StatusHistory, 2)
		assert.Equal(t, "Captured", p.StatusHistory[1].Reason)
	})

	t.Run("complete twice is rejected and leaves history alone", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		err := p.Complete("txn-1", "", now)

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Len(t, p.StatusHistory, 2)
	})

	t.Run("processing keeps the transaction id through completion", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")

		require.NoError(t, p.MarkProcessing("txn-9", "Capture pending", now))
		require.NoError(t, p.Complete("txn-9", "", now.Add(time.Minute)))

		assert.Equal(t, "txn-9", *p.GatewayTransactionID)
		assert.Len(t, p.StatusHistory, 3)
	})

	t.Run("transaction id is never overwritten", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")
		require.NoError(t, p.MarkProcessing("txn-9", "", now))

		err := p.Complete("txn-other", "", now)

		assert.ErrorIs(t, err, domain.ErrDuplicateTransaction)
		assert.Equal(t, "txn-9", *p.GatewayTransactionID)
		assert.Equal(t, domain.StatusProcessing, p.Status)
	})

	t.Run("resolved dispute keeps the original paidAt", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")
		windowEnd := p.RefundWindowEnd()
		p.Status = domain.StatusDisputed

		later := now.Add(30 * 24 * time.Hour)
		require.NoError(t, p.Complete("txn-1", "Dispute resolved", later))

		assert.Equal(t, domain.StatusCompleted, p.Status)
		require.NotNil(t, p.PaidAt)
		assert.Equal(t, now, *p.PaidAt)
		assert.Equal(t, windowEnd, p.RefundWindowEnd())
		assert.Equal(t, later, p.UpdatedAt)
	})

	t.Run("fail records failure info with default reason", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")

		err := p.Fail(domain.FailureInfo{Code: "INSTRUMENT_DECLINED", Message: "declined"}, now)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, p.Status)
		require.NotNil(t, p.Failure)
		assert.Equal(t, now, p.Failure.FailedAt)
		assert.Equal(t, "declined", p.StatusHistory[1].Reason)
	})

	t.Run("completed payment cannot fail", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		err := p.Fail(domain.FailureInfo{Code: "DENIED"}, now)

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.Equal(t, domain.StatusCompleted, p.Status)
	})

	t.Run("cancel pending payment", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")

		require.NoError(t, p.Cancel("Approval window expired", now))
		assert.Equal(t, domain.StatusCancelled, p.Status)
		assert.True(t, p.IsTerminal())
	})

	t.Run("terminal payments reject everything", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")
		require.NoError(t, p.Cancel("", now))

		assert.Error(t, p.Complete("txn-1", "", now))
		assert.Error(t, p.Fail(domain.FailureInfo{}, now))
		assert.Equal(t, domain.DefaultStatusReason, p.StatusHistory[1].Reason)
	})
}

func TestPayment_StatusHistoryIsAppendOnly(t *testing.T) {
	p := createPendingPayment(t, "50.00")
	first := p.StatusHistory[0]

	require.NoError(t, p.Complete("txn-1", "", now.Add(time.Minute)))
	_, err := p.InitiateRefund(domain.RefundRequest{ID: "r1", Amount: dec("10.00")}, now.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = p.InitiateRefund(domain.RefundRequest{ID: "r2", Amount: dec("10.00")}, now.Add(3*time.Minute))
	require.NoError(t, err)
	_, err = p.InitiateRefund(domain.RefundRequest{ID: "r3", Amount: dec("30.00")}, now.Add(4*time.Minute))
	require.NoError(t, err)

	// pending, completed, partially_refunded, refunded
	require.Len(t, p.StatusHistory, 4)
	assert.Equal(t, first, p.StatusHistory[0])
	assert.Equal(t, []domain.PaymentStatus{
		domain.StatusPending,
		domain.StatusCompleted,
		domain.StatusPartiallyRefunded,
		domain.StatusRefunded,
	}, statuses(p.StatusHistory))
}

func statuses(history []domain.StatusChange) []domain.PaymentStatus {
	out := make([]domain.PaymentStatus, 0, len(history))
	for _, h := range history {
		out = append(out, h.Status)
	}
	return out
}

func TestNewOrderFromPayment(t *testing.T) {
	t.Run("snapshots a settled payment", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")
		p.Items = []domain.LineItem{{ProductID: "sku-1", Name: "Mug", Quantity: 2, UnitPrice: dec("25.00")}}

		order, err := domain.NewOrderFromPayment("ord-1", p, now)

		require.NoError(t, err)
		assert.Equal(t, p.ID, order.PaymentID)
		assert.Equal(t, p.Amount, order.Amount)
		assert.Equal(t, domain.OrderStatusPlaced, order.Status)

		p.Items[0].Quantity = 5
		assert.Equal(t, 2, order.Items[0].Quantity)
	})

	t.Run("rejects a pending payment", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")

		_, err := domain.NewOrderFromPayment("ord-1", p, now)

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}
