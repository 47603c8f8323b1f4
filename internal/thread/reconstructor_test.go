package thread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maildesk-io/maildesk-ce/internal/models"
	"github.com/maildesk-io/maildesk-ce/internal/repository"
)

type fakeTicketFinder struct {
	byNumber       map[int64]*models.Ticket
	byConversation map[string]*models.Ticket
	recent         []*models.Ticket
	err            error

	recentSince time.Time
}

func (f *fakeTicketFinder) GetByNumber(_ context.Context, number int64) (*models.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byNumber[number], nil
}

func (f *fakeTicketFinder) GetByConversationID(_ context.Context, conversationID string) (*models.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byConversation[conversationID], nil
}

func (f *fakeTicketFinder) ListRecentByCustomer(_ context.Context, _ string, since time.Time) ([]*models.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.recentSince = since
	return f.recent, nil
}

type fakeMessageFinder struct {
	byExternalID map[string]*models.Message
	refs         []repository.ConversationRef
	err          error

	askedIDs []string
}

func (f *fakeMessageFinder) GetByExternalID(_ context.Context, externalID string) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byExternalID[externalID], nil
}

func (f *fakeMessageFinder) FindConversationsByExternalIDs(_ context.Context, ids []string) ([]repository.ConversationRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.askedIDs = ids
	return f.refs, nil
}

func newTestReconstructor(tickets *fakeTicketFinder, messages *fakeMessageFinder, opts ...Option) *Reconstructor {
	if tickets == nil {
		tickets = &fakeTicketFinder{}
	}
	if messages == nil {
		messages = &fakeMessageFinder{}
	}
	return NewReconstructor(tickets, messages, opts...)
}

func TestMatchSubjectTag(t *testing.T) {
	ticket := &models.Ticket{ID: "t-1", Number: 42}
	tickets := &fakeTicketFinder{byNumber: map[int64]*models.Ticket{42: ticket}}
	r := newTestReconstructor(tickets, nil)

	m, err := r.Match(context.Background(), Input{Subject: "Re: help [#42]"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.Ticket != ticket || m.Strategy != StrategySubjectTag {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestMatchSubjectTagMissingTicketFallsThrough(t *testing.T) {
	parent := &models.Message{ID: "m-1", ConversationID: "c-1"}
	ticket := &models.Ticket{ID: "t-1", Number: 7}
	tickets := &fakeTicketFinder{byConversation: map[string]*models.Ticket{"c-1": ticket}}
	messages := &fakeMessageFinder{byExternalID: map[string]*models.Message{"parent@x": parent}}
	r := newTestReconstructor(tickets, messages)

	m, err := r.Match(context.Background(), Input{
		Subject:   "Re: help [#999]",
		InReplyTo: "<parent@x>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.Strategy != StrategyInReplyTo {
		t.Fatalf("expected in_reply_to fallback, got %+v", m)
	}
}

func TestMatchInReplyTo(t *testing.T) {
	parent := &models.Message{ID: "m-1", ConversationID: "c-1"}
	ticket := &models.Ticket{ID: "t-1", Number: 7}
	tickets := &fakeTicketFinder{byConversation: map[string]*models.Ticket{"c-1": ticket}}
	messages := &fakeMessageFinder{byExternalID: map[string]*models.Message{"parent@x": parent}}
	r := newTestReconstructor(tickets, messages)

	m, err := r.Match(context.Background(), Input{Subject: "Re: help", InReplyTo: "<parent@x>"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.Ticket != ticket || m.Strategy != StrategyInReplyTo {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestMatchReferencesPicksMostRecentConversation(t *testing.T) {
	ticket := &models.Ticket{ID: "t-new", Number: 9}
	tickets := &fakeTicketFinder{byConversation: map[string]*models.Ticket{"c-new": ticket}}
	messages := &fakeMessageFinder{
		refs: []repository.ConversationRef{
			{ExternalID: "b@x", ConversationID: "c-new"},
			{ExternalID: "a@x", ConversationID: "c-old"},
		},
	}
	r := newTestReconstructor(tickets, messages)

	m, err := r.Match(context.Background(), Input{
		Subject:    "help",
		References: []string{"<a@x>", "<b@x>", "<a@x>"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.Ticket != ticket || m.Strategy != StrategyReferences {
		t.Fatalf("unexpected match: %+v", m)
	}
	if len(messages.askedIDs) != 2 {
		t.Fatalf("expected deduped reference ids, got %v", messages.askedIDs)
	}
}

func TestMatchSubjectHeuristic(t *testing.T) {
	ticket := &models.Ticket{ID: "t-1", Number: 3, Subject: "Printer broken [#3]"}
	tickets := &fakeTicketFinder{recent: []*models.Ticket{
		{ID: "t-other", Number: 2, Subject: "something else"},
		ticket,
	}}
	r := newTestReconstructor(tickets, nil, WithSubjectWindow(48*time.Hour))

	m, err := r.Match(context.Background(), Input{
		Subject:    "Re: Printer broken",
		CustomerID: "cust-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil || m.Ticket != ticket || m.Strategy != StrategySubject {
		t.Fatalf("unexpected match: %+v", m)
	}
	if since := time.Since(tickets.recentSince); since < 47*time.Hour || since > 49*time.Hour {
		t.Fatalf("window not applied, since=%v", tickets.recentSince)
	}
}

func TestMatchSubjectHeuristicSkippedWithoutCustomer(t *testing.T) {
	tickets := &fakeTicketFinder{recent: []*models.Ticket{{ID: "t-1", Subject: "help"}}}
	r := newTestReconstructor(tickets, nil)

	m, err := r.Match(context.Background(), Input{Subject: "help"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected no match, got %+v", m)
	}
}

func TestMatchNoSignals(t *testing.T) {
	r := newTestReconstructor(nil, nil)
	m, err := r.Match(context.Background(), Input{Subject: "brand new issue", CustomerID: "cust-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Fatalf("expected new thread, got %+v", m)
	}
}

func TestMatchLookupErrorAborts(t *testing.T) {
	wantErr := errors.New("connection reset")
	tickets := &fakeTicketFinder{err: wantErr}
	r := newTestReconstructor(tickets, nil)

	_, err := r.Match(context.Background(), Input{Subject: "[#1] help"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected lookup error, got %v", err)
	}
}
