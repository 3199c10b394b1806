package card_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/card"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func request(month, year int) application.CardAuthorizationRequest {
	return application.CardAuthorizationRequest{
		Card: application.CardDetails{
			Number:      "4111111111111111",
			ExpiryMonth: month,
			ExpiryYear:  year,
			CVV:         "123",
			HolderName:  "Ada Lovelace",
		},
	}
}

func newSimulator(rate float64) *card.Simulator {
	return card.NewSimulator(config.CardConfig{ApprovalRate: rate},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		card.WithSeed(42),
		card.WithClock(func() time.Time { return fixedNow }),
	)
}

func TestSimulator_AlwaysApproves(t *testing.T) {
	sim := newSimulator(1)
	for range 50 {
		auth, err := sim.Authorize(context.Background(), request(12, 2030))
		require.NoError(t, err)
		require.True(t, auth.Approved)
		assert.True(t, strings.HasPrefix(auth.TransactionID, "card_"))
		assert.Len(t, auth.AuthorizationCode, 6)
	}
}

func TestSimulator_AlwaysDeclines(t *testing.T) {
	auth, err := newSimulator(0).Authorize(context.Background(), request(12, 2030))
	require.NoError(t, err)
	assert.False(t, auth.Approved)
	assert.Equal(t, card.DeclineDoNotHonor, auth.DeclineCode)
	assert.Empty(t, auth.TransactionID)
}

func TestSimulator_ApprovalRateIsRoughlyHonored(t *testing.T) {
	sim := newSimulator(0.95)
	approved := 0
	for range 2000 {
		auth, err := sim.Authorize(context.Background(), request(12, 2030))
		require.NoError(t, err)
		if auth.Approved {
			approved++
		}
	}
	assert.InDelta(t, 1900, approved, 60)
}

func TestSimulator_SameSeedSameOutcomes(t *testing.T) {
	a, b := newSimulator(0.5), newSimulator(0.5)
	for range 20 {
		x, err := a.Authorize(context.Background(), request(12, 2030))
		require.NoError(t, err)
		y, err := b.Authorize(context.Background(), request(12, 2030))
		require.NoError(t, err)
		assert.Equal(t, x.Approved, y.Approved)
	}
}

func TestSimulator_Expiry(t *testing.T) {
	sim := newSimulator(1)

	auth, err := sim.Authorize(context.Background(), request(2, 2026))
	require.NoError(t, err)
	assert.Equal(t, card.DeclineExpired, auth.DeclineCode)

	auth, err = sim.Authorize(context.Background(), request(3, 2026))
	require.NoError(t, err)
	assert.True(t, auth.Approved)
}

func TestSimulator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSimulator(1).Authorize(ctx, request(12, 2030))
	assert.ErrorIs(t, err, context.Canceled)
}
