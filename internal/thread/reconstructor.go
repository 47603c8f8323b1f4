package thread

import (
	"context"
	"log"
	"time"

	"github.com/maildesk-io/maildesk-ce/internal/models"
	"github.com/maildesk-io/maildesk-ce/internal/repository"
)

// Strategy names reported on a successful match.
const (
	StrategySubjectTag = "subject_tag"
	StrategyInReplyTo  = "in_reply_to"
	StrategyReferences = "references"
	StrategySubject    = "subject_heuristic"
)

// Input carries the signals one inbound mail offers for matching.
type Input struct {
	MessageID  string
	InReplyTo  string
	References []string
	Subject    string
	CustomerID string
}

// Match identifies the existing thread an inbound mail belongs to.
type Match struct {
	Ticket   *models.Ticket
	Strategy string
}

type ticketFinder interface {
	GetByNumber(ctx context.Context, number int64) (*models.Ticket, error)
	GetByConversationID(ctx context.Context, conversationID string) (*models.Ticket, error)
	ListRecentByCustomer(ctx context.Context, customerID string, since time.Time) ([]*models.Ticket, error)
}

type messageFinder interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.Message, error)
	FindConversationsByExternalIDs(ctx context.Context, externalIDs []string) ([]repository.ConversationRef, error)
}

// Reconstructor resolves inbound mail to existing tickets through
// ordered strategies; the first success wins. A nil result means the
// mail starts a new thread.
type Reconstructor struct {
	tickets       ticketFinder
	messages      messageFinder
	subjectWindow time.Duration
	logger        *log.Logger
}

// Option customizes a Reconstructor.
type Option func(*Reconstructor)

// WithSubjectWindow bounds how far back the subject heuristic looks.
func WithSubjectWindow(window time.Duration) Option {
	return func(r *Reconstructor) {
		if window > 0 {
			r.subjectWindow = window
		}
	}
}

// WithLogger overrides the diagnostics logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconstructor) {
		if logger != nil {
			r.logger = logger
		}
	}
}

const defaultSubjectWindow = 30 * 24 * time.Hour

// NewReconstructor builds the matching engine.
func NewReconstructor(tickets ticketFinder, messages messageFinder, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		tickets:       tickets,
		messages:      messages,
		subjectWindow: defaultSubjectWindow,
		logger:        log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Match runs the strategies in order. Lookup failures abort matching;
// a strategy that simply finds nothing falls through to the next.
func (r *Reconstructor) Match(ctx context.Context, in Input) (*Match, error) {
	if m, err := r.matchSubjectTag(ctx, in); err != nil || m != nil {
		return m, err
	}
	if m, err := r.matchInReplyTo(ctx, in); err != nil || m != nil {
		return m, err
	}
	if m, err := r.matchReferences(ctx, in); err != nil || m != nil {
		return m, err
	}
	return r.matchSubjectHeuristic(ctx, in)
}

// matchSubjectTag resolves an explicit [#N] reference directly to that
// ticket. This is the most authoritative signal and bypasses header
// matching entirely.
func (r *Reconstructor) matchSubjectTag(ctx context.Context, in Input) (*Match, error) {
	number, ok := ExtractTicketNumber(in.Subject)
	if !ok {
		return nil, nil
	}
	ticket, err := r.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		// Tag references a ticket that no longer exists; header
		// strategies may still place the mail correctly.
		r.logf("thread: subject tag #%d has no ticket, falling through", number)
		return nil, nil
	}
	return &Match{Ticket: ticket, Strategy: StrategySubjectTag}, nil
}

func (r *Reconstructor) matchInReplyTo(ctx context.Context, in Input) (*Match, error) {
	id := NormalizeMessageID(in.InReplyTo)
	if id == "" {
		return nil, nil
	}
	parent, err := r.messages.GetByExternalID(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}
	return r.ticketForConversation(ctx, parent.ConversationID, StrategyInReplyTo)
}

// matchReferences scans the ancestor chain for any stored message id.
// When hits span several conversations, the most recently active one
// wins.
func (r *Reconstructor) matchReferences(ctx context.Context, in Input) (*Match, error) {
	ids := NormalizeMessageIDs(in.References)
	if len(ids) == 0 {
		return nil, nil
	}
	refs, err := r.messages.FindConversationsByExternalIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	// Rows arrive ordered by conversation activity, newest first.
	return r.ticketForConversation(ctx, refs[0].ConversationID, StrategyReferences)
}

// matchSubjectHeuristic handles providers that rewrite or drop the
// threading headers entirely: same customer, same normalized subject,
// activity within the configured window.
func (r *Reconstructor) matchSubjectHeuristic(ctx context.Context, in Input) (*Match, error) {
	normalized := NormalizeSubject(in.Subject)
	if normalized == "" || in.CustomerID == "" {
		return nil, nil
	}
	since := time.Now().Add(-r.subjectWindow)
	candidates, err := r.tickets.ListRecentByCustomer(ctx, in.CustomerID, since)
	if err != nil {
		return nil, err
	}
	for _, ticket := range candidates {
		if NormalizeSubject(ticket.Subject) == normalized {
			r.logf("thread: subject heuristic matched ticket #%d", ticket.Number)
			return &Match{Ticket: ticket, Strategy: StrategySubject}, nil
		}
	}
	return nil, nil
}

func (r *Reconstructor) ticketForConversation(ctx context.Context, conversationID, strategy string) (*Match, error) {
	ticket, err := r.tickets.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		r.logf("thread: conversation %s has no ticket, falling through", conversationID)
		return nil, nil
	}
	return &Match{Ticket: ticket, Strategy: strategy}, nil
}

func (r *Reconstructor) logf(format string, args ...any) {
	if r == nil || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
