package repository

import (
	"context"
	"database/sql"
	"time"
)

// WebhookEventRepo records processed payment gateway events so that
// redelivered events are acknowledged without being applied twice.
type WebhookEventRepo struct {
	db *sql.DB
}

func NewWebhookEventRepo(db *sql.DB) *WebhookEventRepo { return &WebhookEventRepo{db: db} }

// Record inserts the event id.  It returns false, nil when the event was
// already recorded.
func (r *WebhookEventRepo) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO webhook_events (event_id, event_type, processed_at) VALUES (?,?,?)",
		eventID, eventType, time.Now().UTC())
	if err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Forget removes an event id so a failed delivery can be retried.
func (r *WebhookEventRepo) Forget(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM webhook_events WHERE event_id = ?", eventID)
	return err
}

// DeleteOlderThan prunes records processed before cutoff.
func (r *WebhookEventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM webhook_events WHERE processed_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
