package domain_test

import (
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayment_InitiateRefund(t *testing.T) {
	t.Run("partial then full then exceeded", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		refund, err := p.InitiateRefund(domain.RefundRequest{ID: "r1", Amount: dec("30.00"), Reason: "damaged", PerformedBy: "admin-1"}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.RefundStatusPending, refund.Status)
		assert.Equal(t, now, refund.ProcessedAt)
		assert.Equal(t, domain.CurrencyGBP, refund.Currency)
		assert.Equal(t, "30", p.TotalRefunded.String())
		assert.Equal(t, domain.StatusPartiallyRefunded, p.Status)
		assert.Equal(t, "20", p.RefundableAmount().String())
		assert.Equal(t, "admin-1", p.StatusHistory[len(p.StatusHistory)-1].PerformedBy)

		_, err = p.InitiateRefund(domain.RefundRequest{ID: "r2", Amount: dec("20.00")}, now)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRefunded, p.Status)
		assert.True(t, p.RefundableAmount().IsZero())
		assert.False(t, p.IsRefundable(now))

		_, err = p.InitiateRefund(domain.RefundRequest{ID: "r3", Amount: dec("0.01")}, now)
		assert.ErrorIs(t, err, domain.ErrExceedsRefundableAmount)
		assert.Len(t, p.Refunds, 2)
		assert.Equal(t, "50", p.TotalRefunded.String())
	})

	t.Run("rejects amount above refundable before mutating", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		_, err := p.InitiateRefund(domain.RefundRequest{ID: "r1", Amount: dec("50.01")}, now)

		assert.ErrorIs(t, err, domain.ErrExceedsRefundableAmount)
		assert.Empty(t, p.Refunds)
		assert.True(t, p.TotalRefunded.IsZero())
		assert.Equal(t, domain.StatusCompleted, p.Status)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		_, err := p.InitiateRefund(domain.RefundRequest{ID: "r1", Amount: decimal.Zero}, now)

		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	t.Run("pending payment is not refundable", func(t *testing.T) {
		p := createPendingPayment(t, "50.00")

		_, err := p.InitiateRefund(domain.RefundRequest{ID: "r1", Amount: dec("10.00")}, now)

		assert.ErrorIs(t, err, domain.ErrNotRefundable)
	})

	t.Run("refund window closes 90 days after paidAt", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		inside := now.Add(domain.RefundWindow)
		outside := inside.Add(time.Second)

		assert.True(t, p.IsRefundable(inside))
		assert.False(t, p.IsRefundable(outside))

		_, err := p.InitiateRefund(domain.RefundRequest{ID: "r1", Amount: dec("10.00")}, outside)
		assert.ErrorIs(t, err, domain.ErrNotRefundable)
		assert.Contains(t, err.Error(), "refund window")
	})

	t.Run("window falls back to updatedAt without paidAt", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")
		p.PaidAt = nil
		p.UpdatedAt = now.Add(-100 * 24 * time.Hour)

		assert.False(t, p.IsRefundable(now))
	})

	t.Run("total refunded never exceeds amount", func(t *testing.T) {
		p := createCompletedPayment(t, "10.00")
		previous := decimal.Zero

		for i := 0; i < 15; i++ {
			_, _ = p.InitiateRefund(domain.RefundRequest{ID: "r", Amount: dec("0.75")}, now)

			assert.True(t, p.TotalRefunded.GreaterThanOrEqual(previous))
			assert.True(t, p.TotalRefunded.LessThanOrEqual(p.Amount))
			previous = p.TotalRefunded
		}
		assert.Equal(t, "9.75", p.TotalRefunded.String())
		assert.Equal(t, domain.StatusPartiallyRefunded, p.Status)
	})
}

func TestPayment_ApplyGatewayRefund(t *testing.T) {
	t.Run("appends a completed refund", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		applied, err := p.ApplyGatewayRefund("r1", "pp-ref-1", dec("50.00"), now)

		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, domain.StatusRefunded, p.Status)
		require.Len(t, p.Refunds, 1)
		assert.Equal(t, domain.RefundStatusCompleted, p.Refunds[0].Status)
		assert.Equal(t, "pp-ref-1", *p.Refunds[0].GatewayRefundID)
	})

	t.Run("same gateway refund twice is a no-op", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		_, err := p.ApplyGatewayRefund("r1", "pp-ref-1", dec("10.00"), now)
		require.NoError(t, err)
		historyLen := len(p.StatusHistory)

		applied, err := p.ApplyGatewayRefund("r2", "pp-ref-1", dec("10.00"), now)

		require.NoError(t, err)
		assert.False(t, applied)
		assert.Len(t, p.Refunds, 1)
		assert.Equal(t, "10", p.TotalRefunded.String())
		assert.Len(t, p.StatusHistory, historyLen)
	})

	t.Run("settles a matching pending refund instead of counting it twice", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")
		_, err := p.InitiateRefund(domain.RefundRequest{ID: "r1", Amount: dec("20.00")}, now)
		require.NoError(t, err)

		applied, err := p.ApplyGatewayRefund("r2", "pp-ref-1", dec("20.00"), now)

		require.NoError(t, err)
		assert.True(t, applied)
		require.Len(t, p.Refunds, 1)
		assert.Equal(t, domain.RefundStatusCompleted, p.Refunds[0].Status)
		assert.Equal(t, "20", p.TotalRefunded.String())
	})

	t.Run("rejects a refund above the refundable amount", func(t *testing.T) {
		p := createCompletedPayment(t, "50.00")

		_, err := p.ApplyGatewayRefund("r1", "pp-ref-1", dec("60.00"), now)

		assert.ErrorIs(t, err, domain.ErrExceedsRefundableAmount)
		assert.Empty(t, p.Refunds)
	})
}

func TestPayment_ToPaymentCurrency(t *testing.T) {
	p := createCompletedPayment(t, "100.00")
	p.GatewayData = &domain.PayPalData{
		OriginalAmount:     dec("100.00"),
		OriginalCurrency:   domain.CurrencyGBP,
		SettlementAmount:   dec("127.00"),
		SettlementCurrency: domain.CurrencyUSD,
	}

	full, err := p.ToPaymentCurrency(dec("127.00"), domain.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "100", full.String())

	part, err := p.ToPaymentCurrency(dec("63.50"), domain.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "50", part.String())

	same, err := p.ToPaymentCurrency(dec("12.00"), domain.CurrencyGBP)
	require.NoError(t, err)
	assert.Equal(t, "12", same.String())

	_, err = p.ToPaymentCurrency(dec("12.00"), domain.CurrencyEUR)
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
}
