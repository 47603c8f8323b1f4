// Package service orchestrates the webhook ingestion pipeline: one
// inbound email in, one correctly-threaded customer message out.
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/maildesk-io/maildesk-ce/internal/metrics"
	"github.com/maildesk-io/maildesk-ce/internal/models"
	"github.com/maildesk-io/maildesk-ce/internal/thread"
)

type customerResolver interface {
	Resolve(ctx context.Context, email, name string) (*models.Customer, error)
}

type channelResolver interface {
	ActiveEmailChannel(ctx context.Context) (*models.Channel, error)
}

type conversationStore interface {
	Create(ctx context.Context, channelID, customerID string, metadata map[string]any) (*models.Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}

type ticketStore interface {
	Create(ctx context.Context, t *models.Ticket) error
	GetByConversationID(ctx context.Context, conversationID string) (*models.Ticket, error)
	Reopen(ctx context.Context, id string, at time.Time) (bool, error)
}

type messageStore interface {
	Create(ctx context.Context, m *models.Message) (bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Message, error)
}

type threadMatcher interface {
	Match(ctx context.Context, in thread.Input) (*thread.Match, error)
}

type attachmentUploader interface {
	Process(ctx context.Context, messageID string, items []models.InboundAttachment) int
}

type seenFilter interface {
	Seen(ctx context.Context, messageID string) (bool, error)
	Forget(ctx context.Context, messageID string) error
}

// Result is the business outcome of one processed delivery.
type Result struct {
	TicketID          string `json:"ticketId"`
	TicketNumber      int64  `json:"ticketNumber"`
	ConversationID    string `json:"conversationId"`
	MessageID         string `json:"messageId"`
	Duplicate         bool   `json:"-"`
	Strategy          string `json:"-"`
	AttachmentsLinked int    `json:"-"`
}

// IngestService runs the pipeline for validated payloads. All
// collaborators are injected; the service itself holds no mutable
// state and is safe for concurrent deliveries.
type IngestService struct {
	customers     customerResolver
	channels      channelResolver
	conversations conversationStore
	tickets       ticketStore
	messages      messageStore
	matcher       threadMatcher
	attachments   attachmentUploader
	dedup         seenFilter
	metrics       *metrics.Metrics
	logger        *log.Logger
}

// IngestOption customizes an IngestService.
type IngestOption func(*IngestService)

// WithDedupFilter wires the optional redis fast-path.
func WithDedupFilter(f seenFilter) IngestOption {
	return func(s *IngestService) {
		if f != nil {
			s.dedup = f
		}
	}
}

// WithIngestMetrics wires pipeline instrumentation.
func WithIngestMetrics(m *metrics.Metrics) IngestOption {
	return func(s *IngestService) {
		s.metrics = m
	}
}

// WithIngestLogger overrides the diagnostics logger.
func WithIngestLogger(logger *log.Logger) IngestOption {
	return func(s *IngestService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewIngestService wires the pipeline.
func NewIngestService(
	customers customerResolver,
	channels channelResolver,
	conversations conversationStore,
	tickets ticketStore,
	messages messageStore,
	matcher threadMatcher,
	attachments attachmentUploader,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		customers:     customers,
		channels:      channels,
		conversations: conversations,
		tickets:       tickets,
		messages:      messages,
		matcher:       matcher,
		attachments:   attachments,
		logger:        log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Process runs one validated payload through the pipeline. Once
// started, processing runs to completion; there is no mid-flight
// cancellation, so every delivery produces a definite outcome.
func (s *IngestService) Process(ctx context.Context, email *models.InboundEmail) (*Result, error) {
	externalID := thread.NormalizeMessageID(email.MessageID)

	if dup, err := s.fastPathDuplicate(ctx, externalID); err == nil && dup != nil {
		return dup, nil
	}

	customer, err := s.customers.Resolve(ctx, email.From.Email, email.From.Name)
	if err != nil {
		s.dedupForget(ctx, externalID)
		return nil, fmt.Errorf("%w: resolve customer: %v", ErrPersistence, err)
	}

	channel, err := s.channels.ActiveEmailChannel(ctx)
	if err != nil {
		s.dedupForget(ctx, externalID)
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	match, err := s.matcher.Match(ctx, thread.Input{
		MessageID:  externalID,
		InReplyTo:  email.InReplyTo,
		References: email.References,
		Subject:    email.Subject,
		CustomerID: customer.ID,
	})
	if err != nil {
		s.dedupForget(ctx, externalID)
		return nil, fmt.Errorf("%w: thread match: %v", ErrPersistence, err)
	}

	var ticket *models.Ticket
	strategy := metrics.NewThread
	if match != nil {
		ticket = match.Ticket
		strategy = match.Strategy
		if ticket.Status.IsTerminal() {
			if err := s.reopen(ctx, ticket, email.Received()); err != nil {
				s.dedupForget(ctx, externalID)
				return nil, err
			}
		}
	} else {
		ticket, err = s.startThread(ctx, email, channel.ID, customer.ID)
		if err != nil {
			s.dedupForget(ctx, externalID)
			return nil, err
		}
	}

	message := s.buildMessage(email, ticket.ConversationID, customer.ID, externalID)
	created, err := s.messages.Create(ctx, message)
	if err != nil {
		// A new-thread conversation/ticket created just above stays in
		// place: agents may already see it, and the provider will
		// retry this delivery.
		s.dedupForget(ctx, externalID)
		return nil, fmt.Errorf("%w: persist message: %v", ErrPersistence, err)
	}
	if !created {
		return s.duplicateResult(ctx, externalID)
	}

	if err := s.conversations.TouchLastMessage(ctx, ticket.ConversationID, message.CreatedAt); err != nil {
		s.logf("ingest: touch conversation %s: %v", ticket.ConversationID, err)
	}

	linked := 0
	if len(email.Attachments) > 0 {
		linked = s.attachments.Process(ctx, message.ID, email.Attachments)
	}

	if s.metrics != nil {
		s.metrics.ThreadMatches.WithLabelValues(strategy).Inc()
	}
	s.logf("ingest: message %s -> ticket #%d (%s)", externalID, ticket.Number, strategy)

	return &Result{
		TicketID:          ticket.ID,
		TicketNumber:      ticket.Number,
		ConversationID:    ticket.ConversationID,
		MessageID:         message.ID,
		Strategy:          strategy,
		AttachmentsLinked: linked,
	}, nil
}

// fastPathDuplicate short-circuits re-deliveries the dedup filter has
// seen, but only when the message actually landed: a marked id with no
// stored row means an earlier attempt failed mid-flight and must be
// reprocessed.
func (s *IngestService) fastPathDuplicate(ctx context.Context, externalID string) (*Result, error) {
	if s.dedup == nil {
		return nil, nil
	}
	seen, err := s.dedup.Seen(ctx, externalID)
	if err != nil {
		s.logf("ingest: dedup unavailable: %v", err)
		return nil, nil
	}
	if !seen {
		return nil, nil
	}
	dup, err := s.duplicateResult(ctx, externalID)
	if err != nil {
		return nil, nil
	}
	return dup, nil
}

func (s *IngestService) duplicateResult(ctx context.Context, externalID string) (*Result, error) {
	existing, err := s.messages.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("%w: duplicate lookup: %v", ErrPersistence, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: message %s vanished during duplicate handling", ErrNotFound, externalID)
	}
	ticket, err := s.tickets.GetByConversationID(ctx, existing.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: duplicate ticket lookup: %v", ErrPersistence, err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket for conversation %s", ErrNotFound, existing.ConversationID)
	}
	s.logf("ingest: duplicate delivery of %s, keeping message %s", externalID, existing.ID)
	return &Result{
		TicketID:       ticket.ID,
		TicketNumber:   ticket.Number,
		ConversationID: existing.ConversationID,
		MessageID:      existing.ID,
		Duplicate:      true,
		Strategy:       metrics.OutcomeDuplicate,
	}, nil
}

func (s *IngestService) reopen(ctx context.Context, ticket *models.Ticket, at time.Time) error {
	reopened, err := s.tickets.Reopen(ctx, ticket.ID, at)
	if err != nil {
		return fmt.Errorf("%w: reopen ticket: %v", ErrPersistence, err)
	}
	if reopened {
		ticket.Status = models.StatusOpen
		ticket.UpdatedAt = at
		s.logf("ingest: reopened ticket #%d on customer reply", ticket.Number)
	}
	return nil
}

func (s *IngestService) startThread(ctx context.Context, email *models.InboundEmail, channelID, customerID string) (*models.Ticket, error) {
	conv, err := s.conversations.Create(ctx, channelID, customerID, map[string]any{
		"subject":   email.Subject,
		"from":      email.From,
		"to":        email.To,
		"messageId": email.MessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create conversation: %v", ErrPersistence, err)
	}
	ticket := &models.Ticket{
		ConversationID: conv.ID,
		CustomerID:     customerID,
		ChannelID:      channelID,
		Subject:        email.Subject,
		Status:         models.StatusNew,
		Priority:       models.PriorityNormal,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("%w: create ticket: %v", ErrPersistence, err)
	}
	return ticket, nil
}

func (s *IngestService) buildMessage(email *models.InboundEmail, conversationID, customerID, externalID string) *models.Message {
	contentType := models.ContentText
	content := email.Text
	if email.HTML != "" {
		contentType = models.ContentHTML
		content = email.HTML
	}
	return &models.Message{
		ConversationID: conversationID,
		SenderType:     models.SenderCustomer,
		SenderID:       customerID,
		Content:        content,
		ContentType:    contentType,
		Preview:        Preview(email.Text, email.HTML),
		ExternalID:     externalID,
		Metadata: map[string]any{
			"messageId":    email.MessageID,
			"from":         email.From,
			"to":           email.To,
			"cc":           email.CC,
			"subject":      email.Subject,
			"headers":      email.Headers,
			"inReplyTo":    email.InReplyTo,
			"references":   email.References,
			"attachments":  email.Attachments,
			"originalText": email.Text,
			"originalHtml": email.HTML,
			"receivedAt":   email.Received().UTC().Format(time.RFC3339),
		},
		CreatedAt: email.Received(),
	}
}

func (s *IngestService) dedupForget(ctx context.Context, externalID string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Forget(ctx, externalID); err != nil {
		s.logf("ingest: dedup forget %s: %v", externalID, err)
	}
}

func (s *IngestService) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
