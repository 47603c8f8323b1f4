package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/models"
)

const messageColumns = `id, conversation_id, sender_type, sender_id, content, content_type, preview, external_id, metadata, created_at`

// MessageRepository handles message rows.
type MessageRepository struct {
	db *database.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts the message. Idempotency on the external message id is
// enforced by the unique constraint, not by in-process locking: a
// duplicate delivery reports created=false and the caller re-fetches
// the winner.
func (r *MessageRepository) Create(ctx context.Context, m *models.Message) (bool, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	raw, err := marshalMeta(m.Metadata)
	if err != nil {
		return false, fmt.Errorf("message metadata: %w", err)
	}
	query := r.db.Rebind(`
		INSERT INTO messages (id, conversation_id, sender_type, sender_id, content, content_type, preview, external_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.ConversationID, string(m.SenderType), m.SenderID,
		m.Content, string(m.ContentType), m.Preview, m.ExternalID, raw, m.CreatedAt,
	)
	if err == nil {
		return true, nil
	}
	if database.IsUniqueViolation(err) {
		return false, nil
	}
	return false, fmt.Errorf("message create: %w", err)
}

// GetByExternalID fetches a message by its mail Message-ID. Returns
// (nil, nil) when absent.
func (r *MessageRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Message, error) {
	query := r.db.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE external_id = $1`)
	var m models.Message
	var senderType, contentType string
	var raw []byte
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(
		&m.ID, &m.ConversationID, &senderType, &m.SenderID,
		&m.Content, &contentType, &m.Preview, &m.ExternalID, &raw, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("message lookup: %w", err)
	}
	m.SenderType = models.SenderType(senderType)
	m.ContentType = models.ContentType(contentType)
	m.Metadata = unmarshalMeta(raw)
	return &m, nil
}

// ConversationRef is one stored message id hit during reference-chain
// matching, carrying the activity timestamp used for tie-breaking.
type ConversationRef struct {
	ExternalID     string
	ConversationID string
	LastMessageAt  time.Time
}

// FindConversationsByExternalIDs returns the conversations containing
// any of the given mail message ids, most recently active first.
func (r *MessageRepository) FindConversationsByExternalIDs(ctx context.Context, externalIDs []string) ([]ConversationRef, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(externalIDs))
	args := make([]any, len(externalIDs))
	for i, id := range externalIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := r.db.Rebind(`
		SELECT m.external_id, m.conversation_id, c.last_message_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.external_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY c.last_message_at DESC`)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reference lookup: %w", err)
	}
	defer rows.Close()
	var refs []ConversationRef
	for rows.Next() {
		var ref ConversationRef
		if err := rows.Scan(&ref.ExternalID, &ref.ConversationID, &ref.LastMessageAt); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
