package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk-io/maildesk-ce/internal/database"
)

// DatabaseBackend keeps attachment content in the attachment_blobs
// table. Useful for single-node deployments without shared disk.
type DatabaseBackend struct {
	db *database.DB
}

// NewDatabaseBackend creates the backend.
func NewDatabaseBackend(db *database.DB) *DatabaseBackend {
	return &DatabaseBackend{db: db}
}

// Name implements Backend.
func (b *DatabaseBackend) Name() string { return "database" }

// Store implements Backend.
func (b *DatabaseBackend) Store(ctx context.Context, messageID string, obj *Object) (string, error) {
	if obj == nil || len(obj.Data) == 0 {
		return "", fmt.Errorf("storage: empty object")
	}
	id := uuid.New().String()
	query := b.db.Rebind(`
		INSERT INTO attachment_blobs (id, message_id, filename, content_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if _, err := b.db.ExecContext(ctx, query,
		id, messageID, obj.Filename, obj.ContentType, obj.Data, time.Now(),
	); err != nil {
		return "", fmt.Errorf("storage: blob insert: %w", err)
	}
	return "db://attachment_blobs/" + id, nil
}

// HealthCheck implements Backend.
func (b *DatabaseBackend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
