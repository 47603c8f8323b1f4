package models

import (
	"time"
)

// TicketStatus enumerates the lifecycle states of a ticket.
type TicketStatus string

const (
	StatusNew      TicketStatus = "new"
	StatusOpen     TicketStatus = "open"
	StatusPending  TicketStatus = "pending"
	StatusResolved TicketStatus = "resolved"
	StatusClosed   TicketStatus = "closed"
)

// IsTerminal reports whether the status ends the normal agent workflow.
// Inbound customer activity against a terminal ticket reopens it.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// TicketPriority enumerates ticket priorities.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityNormal TicketPriority = "normal"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// ContentType identifies the stored body format of a message.
type ContentType string

const (
	ContentText ContentType = "text"
	ContentHTML ContentType = "html"
)

// ChannelTypeEmail is the channel type inbound mail routes through.
const ChannelTypeEmail = "email"

// Customer is a persistent identity keyed by unique email address.
// Created lazily on first contact; never deleted by the pipeline.
type Customer struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Channel is a configured inbox. Exactly one active email channel is
// expected for inbound routing.
type Channel struct {
	ID        string    `json:"id" db:"id"`
	Type      string    `json:"type" db:"type"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Conversation groups every message of one mail thread.
type Conversation struct {
	ID            string         `json:"id" db:"id"`
	ChannelID     string         `json:"channel_id" db:"channel_id"`
	CustomerID    string         `json:"customer_id" db:"customer_id"`
	Metadata      map[string]any `json:"metadata" db:"metadata"`
	LastMessageAt time.Time      `json:"last_message_at" db:"last_message_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// Ticket is the agent-facing work item wrapping a conversation.
// Number is the human-readable sequential identifier used in subject
// tags; it is distinct from the internal ID.
type Ticket struct {
	ID             string         `json:"id" db:"id"`
	Number         int64          `json:"number" db:"number"`
	ConversationID string         `json:"conversation_id" db:"conversation_id"`
	CustomerID     string         `json:"customer_id" db:"customer_id"`
	ChannelID      string         `json:"channel_id" db:"channel_id"`
	Subject        string         `json:"subject" db:"subject"`
	Status         TicketStatus   `json:"status" db:"status"`
	Priority       TicketPriority `json:"priority" db:"priority"`
	AssigneeID     *string        `json:"assignee_id,omitempty" db:"assignee_id"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// Message is one communication inside a conversation. Metadata carries
// the full original mail envelope for future thread matching and audit.
type Message struct {
	ID             string         `json:"id" db:"id"`
	ConversationID string         `json:"conversation_id" db:"conversation_id"`
	SenderType     SenderType     `json:"sender_type" db:"sender_type"`
	SenderID       string         `json:"sender_id" db:"sender_id"`
	Content        string         `json:"content" db:"content"`
	ContentType    ContentType    `json:"content_type" db:"content_type"`
	Preview        string         `json:"preview" db:"preview"`
	ExternalID     string         `json:"external_id" db:"external_id"`
	Metadata       map[string]any `json:"metadata" db:"metadata"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Attachment belongs to exactly one message. URL points at durable
// storage once the upload completed.
type Attachment struct {
	ID          string    `json:"id" db:"id"`
	MessageID   string    `json:"message_id" db:"message_id"`
	Filename    string    `json:"filename" db:"filename"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	URL         string    `json:"url" db:"url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Webhook log statuses. A retry of the same delivery creates a new
// entry, finalized rows are never mutated.
const (
	WebhookStatusReceived  = "received"
	WebhookStatusProcessed = "processed"
	WebhookStatusError     = "error"
)

// WebhookLog is one append-only audit record of a delivery attempt.
type WebhookLog struct {
	ID          int64             `json:"id" db:"id"`
	ChannelType string            `json:"channel_type" db:"channel_type"`
	Payload     []byte            `json:"payload" db:"payload"`
	Headers     map[string]string `json:"headers" db:"headers"`
	Status      string            `json:"status" db:"status"`
	Error       string            `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}
