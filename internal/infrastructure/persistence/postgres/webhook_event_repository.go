package postgres

import (
	"context"
	"fmt"
)

// WebhookEventRepository remembers processed webhook deliveries by PayPal event id.
type WebhookEventRepository struct {
	db *DB
}

func NewWebhookEventRepository(db *DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}

// MarkProcessed is a no-op for an event id that is already recorded.
func (r *WebhookEventRepository) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO webhook_events (event_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event: %w", err)
	}
	return nil
}
