package models

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// EmailAddress is one participant of an inbound mail.
type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// InboundAttachment is an attachment as delivered by the mail provider,
// either inline base64 content or a remote URL to fetch.
type InboundAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
	Content     string `json:"content,omitempty"`
}

// InboundEmail is the canonical webhook payload for one delivered mail.
type InboundEmail struct {
	MessageID   string              `json:"messageId"`
	From        EmailAddress        `json:"from"`
	To          []EmailAddress      `json:"to"`
	CC          []EmailAddress      `json:"cc,omitempty"`
	Subject     string              `json:"subject"`
	Text        string              `json:"text,omitempty"`
	HTML        string              `json:"html,omitempty"`
	Attachments []InboundAttachment `json:"attachments,omitempty"`
	Headers     map[string]string   `json:"headers,omitempty"`
	InReplyTo   string              `json:"inReplyTo,omitempty"`
	References  []string            `json:"references,omitempty"`
	ReceivedAt  *time.Time          `json:"receivedAt,omitempty"`
}

// FieldError reports a schema violation at a specific payload path.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

// Validate type-checks the payload shape. messageId, from.email, a
// non-empty to list, and subject are required; everything else is
// optional.
func (m *InboundEmail) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return &FieldError{Field: "messageId", Reason: "required"}
	}
	if err := validateAddress("from.email", m.From.Email); err != nil {
		return err
	}
	if len(m.To) == 0 {
		return &FieldError{Field: "to", Reason: "at least one recipient required"}
	}
	for i, to := range m.To {
		if err := validateAddress(fmt.Sprintf("to[%d].email", i), to.Email); err != nil {
			return err
		}
	}
	for i, cc := range m.CC {
		if err := validateAddress(fmt.Sprintf("cc[%d].email", i), cc.Email); err != nil {
			return err
		}
	}
	if m.Subject == "" {
		return &FieldError{Field: "subject", Reason: "required"}
	}
	return nil
}

// Received returns the provider timestamp, defaulting to now.
func (m *InboundEmail) Received() time.Time {
	if m.ReceivedAt != nil && !m.ReceivedAt.IsZero() {
		return *m.ReceivedAt
	}
	return time.Now()
}

func validateAddress(field, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return &FieldError{Field: field, Reason: "required"}
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return &FieldError{Field: field, Reason: "not a valid email address"}
	}
	return nil
}
