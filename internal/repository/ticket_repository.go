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

const ticketColumns = `id, number, conversation_id, customer_id, channel_id, subject, status, priority, assignee_id, created_at, updated_at`

// TicketRepository handles ticket rows.
type TicketRepository struct {
	db *database.DB
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(db *database.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create inserts a ticket bound 1:1 to its conversation and fills in
// the allocated sequential number. conversation_id is immutable after
// this point.
func (r *TicketRepository) Create(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.StatusNew
	}
	if t.Priority == "" {
		t.Priority = models.PriorityNormal
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	switch r.db.Driver() {
	case database.DriverPostgres:
		query := `
			INSERT INTO tickets (id, conversation_id, customer_id, channel_id, subject, status, priority, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING number`
		if err := r.db.QueryRowContext(ctx, query,
			t.ID, t.ConversationID, t.CustomerID, t.ChannelID, t.Subject,
			string(t.Status), string(t.Priority), t.CreatedAt, t.UpdatedAt,
		).Scan(&t.Number); err != nil {
			return fmt.Errorf("ticket create: %w", err)
		}
		return nil
	default:
		// sqlite has no sequence; allocate inside the insert.
		query := r.db.Rebind(`
			INSERT INTO tickets (id, number, conversation_id, customer_id, channel_id, subject, status, priority, created_at, updated_at)
			VALUES ($1, (SELECT COALESCE(MAX(number), 0) + 1 FROM tickets), $2, $3, $4, $5, $6, $7, $8, $9)`)
		if _, err := r.db.ExecContext(ctx, query,
			t.ID, t.ConversationID, t.CustomerID, t.ChannelID, t.Subject,
			string(t.Status), string(t.Priority), t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return fmt.Errorf("ticket create: %w", err)
		}
		row := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT number FROM tickets WHERE id = $1`), t.ID)
		if err := row.Scan(&t.Number); err != nil {
			return fmt.Errorf("ticket number fetch: %w", err)
		}
		return nil
	}
}

// GetByNumber resolves a human-readable ticket number from a subject
// tag. Returns (nil, nil) when absent.
func (r *TicketRepository) GetByNumber(ctx context.Context, number int64) (*models.Ticket, error) {
	query := r.db.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE number = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, number))
}

// GetByID fetches one ticket. Returns (nil, nil) when absent.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	query := r.db.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByConversationID fetches the ticket owning a conversation.
// Returns (nil, nil) when absent.
func (r *TicketRepository) GetByConversationID(ctx context.Context, conversationID string) (*models.Ticket, error) {
	query := r.db.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE conversation_id = $1`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, conversationID))
}

// ListRecentByCustomer returns the customer's tickets updated since the
// cutoff, most recently active first. The thread matcher compares
// normalized subjects against these candidates in memory.
func (r *TicketRepository) ListRecentByCustomer(ctx context.Context, customerID string, since time.Time) ([]*models.Ticket, error) {
	query := r.db.Rebind(`
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE customer_id = $1 AND updated_at >= $2
		ORDER BY updated_at DESC`)
	rows, err := r.db.QueryContext(ctx, query, customerID, since)
	if err != nil {
		return nil, fmt.Errorf("ticket candidates: %w", err)
	}
	defer rows.Close()
	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Reopen force-transitions a terminal ticket back to open and advances
// updated_at. The update is conditional so a concurrent agent change is
// never clobbered; returns whether a row transitioned.
func (r *TicketRepository) Reopen(ctx context.Context, id string, at time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE tickets
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)`)
	res, err := r.db.ExecContext(ctx, query,
		string(models.StatusOpen), at, id,
		string(models.StatusResolved), string(models.StatusClosed),
	)
	if err != nil {
		return false, fmt.Errorf("ticket reopen: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TicketRepository) scanOne(row *sql.Row) (*models.Ticket, error) {
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ticket lookup: %w", err)
	}
	return t, nil
}

func scanTicket(row rowScanner) (*models.Ticket, error) {
	var t models.Ticket
	var status, priority string
	var assignee sql.NullString
	err := row.Scan(
		&t.ID, &t.Number, &t.ConversationID, &t.CustomerID, &t.ChannelID,
		&t.Subject, &status, &priority, &assignee, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.TicketStatus(status)
	t.Priority = models.TicketPriority(priority)
	if assignee.Valid {
		t.AssigneeID = &assignee.String
	}
	return &t, nil
}
