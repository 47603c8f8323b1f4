package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/models"
)

// AttachmentRepository handles attachment rows.
type AttachmentRepository struct {
	db *database.DB
}

// NewAttachmentRepository creates a new attachment repository.
func NewAttachmentRepository(db *database.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create links one uploaded attachment to its message.
func (r *AttachmentRepository) Create(ctx context.Context, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	query := r.db.Rebind(`
		INSERT INTO attachments (id, message_id, filename, content_type, size, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if _, err := r.db.ExecContext(ctx, query,
		a.ID, a.MessageID, a.Filename, a.ContentType, a.Size, a.URL, a.CreatedAt,
	); err != nil {
		return fmt.Errorf("attachment create: %w", err)
	}
	return nil
}

// ListByMessage returns the attachments linked to a message.
func (r *AttachmentRepository) ListByMessage(ctx context.Context, messageID string) ([]*models.Attachment, error) {
	query := r.db.Rebind(`
		SELECT id, message_id, filename, content_type, size, url, created_at
		FROM attachments
		WHERE message_id = $1
		ORDER BY created_at`)
	rows, err := r.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, fmt.Errorf("attachment list: %w", err)
	}
	defer rows.Close()
	var out []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.ContentType, &a.Size, &a.URL, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
