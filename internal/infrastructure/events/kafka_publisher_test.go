package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/domain"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/infrastructure/events"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() domain.PaymentEvent {
	return domain.PaymentEvent{
		Type:          domain.EventPaymentCompleted,
		PaymentID:     "pay-1",
		UserID:        "user-1",
		Status:        domain.StatusCompleted,
		Amount:        decimal.RequireFromString("100.00"),
		Currency:      domain.CurrencyGBP,
		TotalRefunded: decimal.Zero,
		OccurredAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func producerConfig() *sarama.Config {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	return cfg
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	defer func() { assert.NoError(t, producer.Close()) }()

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		assert.Equal(t, "payments.lifecycle", msg.Topic)

		key, err := msg.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "pay-1", string(key))

		value, err := msg.Value.Encode()
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(value, &body))
		assert.Equal(t, "payment.completed.v1", body["type"])
		assert.Equal(t, "completed", body["status"])
		assert.Equal(t, "100", body["amount"])

		require.Len(t, msg.Headers, 1)
		assert.Equal(t, "payment.completed.v1", string(msg.Headers[0].Value))
		return nil
	})

	publisher := events.NewKafkaPublisherWithProducer(producer, "payments.lifecycle", discard())
	require.NoError(t, publisher.Publish(context.Background(), sampleEvent()))
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	defer func() { assert.NoError(t, producer.Close()) }()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := events.NewKafkaPublisherWithProducer(producer, "payments.lifecycle", discard())
	err := publisher.Publish(context.Background(), sampleEvent())
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
}

func TestKafkaPublisher_CancelledContextSendsNothing(t *testing.T) {
	producer := mocks.NewSyncProducer(t, producerConfig())
	defer func() { assert.NoError(t, producer.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	publisher := events.NewKafkaPublisherWithProducer(producer, "payments.lifecycle", discard())
	assert.ErrorIs(t, publisher.Publish(ctx, sampleEvent()), context.Canceled)
}

func TestLogPublisher_NeverFails(t *testing.T) {
	assert.NoError(t, events.NewLogPublisher(discard()).Publish(context.Background(), sampleEvent()))
}
