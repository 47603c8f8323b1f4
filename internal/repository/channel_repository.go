package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/models"
)

// ErrNoActiveChannel means inbound mail has nowhere to route. The
// pipeline aborts the whole request on this.
var ErrNoActiveChannel = errors.New("no active email channel configured")

// ChannelRepository handles channel rows.
type ChannelRepository struct {
	db *database.DB
}

// NewChannelRepository creates a new channel repository.
func NewChannelRepository(db *database.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// ActiveEmailChannel returns the active inbound email channel. When
// several rows are active the most recently created wins.
func (r *ChannelRepository) ActiveEmailChannel(ctx context.Context) (*models.Channel, error) {
	query := r.db.Rebind(`
		SELECT id, type, name, is_active, created_at
		FROM channels
		WHERE type = $1 AND is_active = $2
		ORDER BY created_at DESC
		LIMIT 1`)
	var ch models.Channel
	err := r.db.QueryRowContext(ctx, query, models.ChannelTypeEmail, true).Scan(
		&ch.ID, &ch.Type, &ch.Name, &ch.IsActive, &ch.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveChannel
	}
	if err != nil {
		return nil, fmt.Errorf("channel lookup: %w", err)
	}
	return &ch, nil
}
