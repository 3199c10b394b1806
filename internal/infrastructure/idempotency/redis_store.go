// Package idempotency keeps Idempotency-Key reservations for payment creation in Redis.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisStore maps an idempotency key to the request hash and, once finished, the payment id.
// Keys expire after ttl whether or not the request completed.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, cfg config.RedisConfig) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.IdempotencyTTL,
	}
}

// NewClient builds a go-redis client and checks it answers.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// Reserve claims key for requestHash. When the key is taken it returns the stored record and false.
func (s *RedisStore) Reserve(ctx context.Context, key, requestHash string) (*application.IdempotencyRecord, bool, error) {
	value, err := json.Marshal(application.IdempotencyRecord{RequestHash: requestHash})
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode idempotency record: %w", err)
	}

	fullKey := s.fullKey(key)
	for range 2 {
		reserved, err := s.client.SetNX(ctx, fullKey, value, s.ttl).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
		}
		if reserved {
			return nil, true, nil
		}

		raw, err := s.client.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired or released between SETNX and GET
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to read idempotency key: %w", err)
		}

		var existing application.IdempotencyRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			return nil, false, fmt.Errorf("failed to decode idempotency record: %w", err)
		}
		return &existing, false, nil
	}
	return nil, false, fmt.Errorf("failed to reserve idempotency key %q: key keeps disappearing", key)
}

func (s *RedisStore) Complete(ctx context.Context, key, requestHash, paymentID string) error {
	value, err := json.Marshal(application.IdempotencyRecord{RequestHash: requestHash, PaymentID: paymentID})
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, s.fullKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to complete idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) fullKey(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}
