package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/models"
)

// WebhookLogRepository appends delivery audit rows. Rows are never
// updated: the pre-processing record and the outcome record are
// independent appends so neither can be rolled back by the pipeline.
type WebhookLogRepository struct {
	db *database.DB
}

// NewWebhookLogRepository creates a new webhook log repository.
func NewWebhookLogRepository(db *database.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

// Append writes one audit row and returns its id.
func (r *WebhookLogRepository) Append(ctx context.Context, entry *models.WebhookLog) (int64, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		headers = []byte("{}")
	}
	payload := entry.Payload
	if len(payload) == 0 || !json.Valid(payload) {
		// Raw payload may be arbitrary bytes when the provider sends
		// garbage; store it as a JSON string so the column stays valid.
		quoted, qerr := json.Marshal(string(payload))
		if qerr != nil {
			quoted = []byte("null")
		}
		payload = quoted
	}

	switch r.db.Driver() {
	case database.DriverPostgres:
		query := `
			INSERT INTO webhook_logs (channel_type, payload, headers, status, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`
		if err := r.db.QueryRowContext(ctx, query,
			entry.ChannelType, payload, headers, entry.Status, entry.Error, entry.CreatedAt,
		).Scan(&entry.ID); err != nil {
			return 0, fmt.Errorf("webhook log append: %w", err)
		}
		return entry.ID, nil
	default:
		query := r.db.Rebind(`
			INSERT INTO webhook_logs (channel_type, payload, headers, status, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`)
		res, err := r.db.ExecContext(ctx, query,
			entry.ChannelType, payload, headers, entry.Status, entry.Error, entry.CreatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("webhook log append: %w", err)
		}
		entry.ID, _ = res.LastInsertId()
		return entry.ID, nil
	}
}

// ListRecent returns up to limit rows with the given status, newest
// first. An empty status matches everything.
func (r *WebhookLogRepository) ListRecent(ctx context.Context, status string, limit int) ([]*models.WebhookLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, channel_type, payload, headers, status, error, created_at
		FROM webhook_logs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("webhook log list: %w", err)
	}
	defer rows.Close()
	var out []*models.WebhookLog
	for rows.Next() {
		var entry models.WebhookLog
		var headers []byte
		if err := rows.Scan(&entry.ID, &entry.ChannelType, &entry.Payload, &headers, &entry.Status, &entry.Error, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(headers) > 0 {
			_ = json.Unmarshal(headers, &entry.Headers)
		}
		out = append(out, &entry)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes audit rows past the retention cutoff and
// reports how many were dropped.
func (r *WebhookLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM webhook_logs WHERE created_at < $1`)
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("webhook log retention: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
