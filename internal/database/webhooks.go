// webhooks.go handles webhook-related database operations.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// CreateWebhook inserts a new webhook record.
func (db *DB) CreateWebhook(ctx context.Context, w *models.Webhook) error {
	w.ID = newID()
	w.CreatedAt = now()
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO webhooks (id, owner_id, url, events, secret, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.OwnerID, w.URL, w.Events, w.Secret, w.Active, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// ListWebhooks returns all webhooks for an owner.
func (db *DB) ListWebhooks(ctx context.Context, ownerID string) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := db.SelectContext(ctx, &webhooks, db.Rebind(`
		SELECT * FROM webhooks WHERE owner_id = ? ORDER BY created_at DESC, id`), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return webhooks, nil
}

// UpdateWebhookActive toggles a webhook's active state.
func (db *DB) UpdateWebhookActive(ctx context.Context, ownerID, id string, active bool) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE webhooks SET active = ? WHERE id = ? AND owner_id = ?`), active, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return expectOne(res, "webhook")
}

// DeleteWebhook removes a webhook and its delivery history.
func (db *DB) DeleteWebhook(ctx context.Context, ownerID, id string) error {
	res, err := db.ExecContext(ctx, db.Rebind(`
		DELETE FROM webhooks WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return expectOne(res, "webhook")
}

// GetActiveWebhooksForEvent returns the owner's active webhooks subscribed to event.
// Events are stored as a JSON list, so subscription is checked in Go to keep
// the query portable across drivers.
func (db *DB) GetActiveWebhooksForEvent(ctx context.Context, ownerID, event string) ([]models.Webhook, error) {
	var all []models.Webhook
	err := db.SelectContext(ctx, &all, db.Rebind(`
		SELECT * FROM webhooks WHERE owner_id = ? AND active = ?`), ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get webhooks for event: %w", err)
	}
	var out []models.Webhook
	for _, w := range all {
		if w.Subscribes(event) {
			out = append(out, w)
		}
	}
	return out, nil
}

// CreateWebhookDelivery inserts a new webhook delivery record.
func (db *DB) CreateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	d.ID = newID()
	d.CreatedAt = now()
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, status, attempts, last_error, response_code, delivered_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`),
		d.ID, d.WebhookID, d.Event, d.Payload, d.Status, d.Attempts, d.LastError, d.ResponseCode, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook delivery: %w", err)
	}
	return nil
}

// UpdateWebhookDelivery updates a delivery record after an attempt.
func (db *DB) UpdateWebhookDelivery(ctx context.Context, d *models.WebhookDelivery) error {
	var deliveredAt *time.Time
	if d.DeliveredAt != nil {
		t := d.DeliveredAt.UTC()
		deliveredAt = &t
	}
	_, err := db.ExecContext(ctx, db.Rebind(`
		UPDATE webhook_deliveries
		SET status = ?, attempts = ?, last_error = ?, response_code = ?, delivered_at = ?
		WHERE id = ?`),
		d.Status, d.Attempts, d.LastError, d.ResponseCode, deliveredAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update webhook delivery: %w", err)
	}
	return nil
}

// ListDeliveriesByOwner returns recent deliveries across all of an owner's webhooks.
func (db *DB) ListDeliveriesByOwner(ctx context.Context, ownerID string, limit int) ([]models.WebhookDelivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var deliveries []models.WebhookDelivery
	err := db.SelectContext(ctx, &deliveries, db.Rebind(`
		SELECT wd.* FROM webhook_deliveries wd
		JOIN webhooks w ON w.id = wd.webhook_id
		WHERE w.owner_id = ?
		ORDER BY wd.created_at DESC, wd.id LIMIT ?`),
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}
