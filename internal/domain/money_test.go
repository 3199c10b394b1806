package domain_test

import (
	"testing"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	t.Run("currency is case-insensitive", func(t *testing.T) {
		c, err := domain.ParseCurrency(" gbp ")
		require.NoError(t, err)
		assert.Equal(t, domain.CurrencyGBP, c)
	})

	t.Run("unknown currency", func(t *testing.T) {
		_, err := domain.ParseCurrency("XYZ")
		assert.ErrorIs(t, err, domain.ErrInvalidCurrency)
	})

	t.Run("empty market defaults", func(t *testing.T) {
		m, err := domain.ParseMarket("")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultMarket, m)
	})

	t.Run("unknown market", func(t *testing.T) {
		_, err := domain.ParseMarket("ZZ")
		assert.ErrorIs(t, err, domain.ErrInvalidMarket)
	})

	t.Run("payment method", func(t *testing.T) {
		m, err := domain.ParsePaymentMethod("PayPal")
		require.NoError(t, err)
		assert.Equal(t, domain.MethodPayPal, m)

		_, err = domain.ParsePaymentMethod("crypto")
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	})
}

func TestConvertToSettlement(t *testing.T) {
	usd, err := domain.ConvertToSettlement(dec("100.00"), domain.CurrencyGBP)
	require.NoError(t, err)
	assert.Equal(t, "127", usd.String())

	same, err := domain.ConvertToSettlement(dec("19.99"), domain.CurrencyUSD)
	require.NoError(t, err)
	assert.Equal(t, "19.99", same.String())

	yen, err := domain.ConvertToSettlement(dec("1500"), domain.CurrencyJPY)
	require.NoError(t, err)
	assert.Equal(t, "10.05", yen.String())
}

func TestBreakdown(t *testing.T) {
	b := domain.Breakdown{Subtotal: dec("33.33"), Shipping: dec("4.99"), Discount: dec("2.00")}

	assert.Equal(t, "6.67", b.Tax().String())
	// 33.33 * 1.2 = 39.996 -> 39.996 + 4.99 - 2.00 = 42.986 -> 42.99
	assert.Equal(t, "42.99", b.Total().String())

	bad := domain.Breakdown{Subtotal: dec("-1.00")}
	assert.ErrorIs(t, bad.Validate(), domain.ErrValidation)
}

func TestApprovalLink(t *testing.T) {
	links := []domain.Link{
		{Href: "https://api.paypal.com/v2/checkout/orders/1", Rel: "self"},
		{Href: "https://www.paypal.com/checkoutnow?token=1", Rel: "approve"},
	}

	href, ok := domain.ApprovalLink(links)
	assert.True(t, ok)
	assert.Equal(t, "https://www.paypal.com/checkoutnow?token=1", href)

	_, ok = domain.ApprovalLink(links[:1])
	assert.False(t, ok)
}
