package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/models"
)

// ConversationRepository handles conversation rows.
type ConversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *database.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a new conversation. A conversation is created once per
// new thread, never per message.
func (r *ConversationRepository) Create(ctx context.Context, channelID, customerID string, metadata map[string]any) (*models.Conversation, error) {
	now := time.Now()
	conv := &models.Conversation{
		ID:            uuid.New().String(),
		ChannelID:     channelID,
		CustomerID:    customerID,
		Metadata:      metadata,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	raw, err := marshalMeta(metadata)
	if err != nil {
		return nil, fmt.Errorf("conversation metadata: %w", err)
	}
	query := r.db.Rebind(`
		INSERT INTO conversations (id, channel_id, customer_id, metadata, last_message_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if _, err := r.db.ExecContext(ctx, query,
		conv.ID, conv.ChannelID, conv.CustomerID, raw, conv.LastMessageAt, conv.CreatedAt, conv.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("conversation create: %w", err)
	}
	return conv, nil
}

// GetByID fetches one conversation. Returns (nil, nil) when absent.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := r.db.Rebind(`
		SELECT id, channel_id, customer_id, metadata, last_message_at, created_at, updated_at
		FROM conversations
		WHERE id = $1`)
	var conv models.Conversation
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID, &conv.ChannelID, &conv.CustomerID, &raw,
		&conv.LastMessageAt, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation lookup: %w", err)
	}
	conv.Metadata = unmarshalMeta(raw)
	return &conv, nil
}

// TouchLastMessage advances the conversation activity timestamp used by
// the thread matcher's tie-break.
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	query := r.db.Rebind(`
		UPDATE conversations
		SET last_message_at = $1, updated_at = $2
		WHERE id = $3`)
	if _, err := r.db.ExecContext(ctx, query, at, at, id); err != nil {
		return fmt.Errorf("conversation touch: %w", err)
	}
	return nil
}
