package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/maildesk-io/maildesk-ce/internal/models"
	"github.com/maildesk-io/maildesk-ce/internal/storage"
)

type attachmentStore interface {
	Create(ctx context.Context, a *models.Attachment) error
}

// AttachmentProcessor uploads inbound attachments and links them to a
// persisted message. It runs after the message is committed and is
// fully isolated: no failure here escapes to the caller.
type AttachmentProcessor struct {
	backend    storage.Backend
	store      attachmentStore
	client     *http.Client
	logger     *log.Logger
	fetchLimit int64
	onFailure  func()
}

const defaultFetchLimit = 25 * 1024 * 1024

// AttachmentOption customizes an AttachmentProcessor.
type AttachmentOption func(*AttachmentProcessor)

// WithAttachmentHTTPClient overrides the client used for url fetches.
func WithAttachmentHTTPClient(client *http.Client) AttachmentOption {
	return func(p *AttachmentProcessor) {
		if client != nil {
			p.client = client
		}
	}
}

// WithAttachmentLogger overrides the diagnostics logger.
func WithAttachmentLogger(logger *log.Logger) AttachmentOption {
	return func(p *AttachmentProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithAttachmentFetchLimit caps how many bytes a remote fetch may read.
func WithAttachmentFetchLimit(limit int64) AttachmentOption {
	return func(p *AttachmentProcessor) {
		if limit > 0 {
			p.fetchLimit = limit
		}
	}
}

// WithAttachmentFailureHook is called once per failed attachment, used
// for metrics.
func WithAttachmentFailureHook(fn func()) AttachmentOption {
	return func(p *AttachmentProcessor) {
		if fn != nil {
			p.onFailure = fn
		}
	}
}

// NewAttachmentProcessor builds the processor.
func NewAttachmentProcessor(backend storage.Backend, store attachmentStore, opts ...AttachmentOption) *AttachmentProcessor {
	p := &AttachmentProcessor{
		backend:    backend,
		store:      store,
		client:     http.DefaultClient,
		logger:     log.Default(),
		fetchLimit: defaultFetchLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Process uploads each attachment and creates its row. Returns how
// many were linked; failures are logged and counted, never returned.
func (p *AttachmentProcessor) Process(ctx context.Context, messageID string, items []models.InboundAttachment) int {
	linked := 0
	for _, item := range items {
		if err := p.processOne(ctx, messageID, item); err != nil {
			p.logf("attachment %q for message %s: %v", item.Filename, messageID, err)
			if p.onFailure != nil {
				p.onFailure()
			}
			continue
		}
		linked++
	}
	return linked
}

func (p *AttachmentProcessor) processOne(ctx context.Context, messageID string, item models.InboundAttachment) error {
	data, err := p.content(ctx, item)
	if err != nil {
		return err
	}
	contentType := strings.TrimSpace(item.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	url, err := p.backend.Store(ctx, messageID, &storage.Object{
		Filename:    item.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	size := item.Size
	if size <= 0 {
		size = int64(len(data))
	}
	return p.store.Create(ctx, &models.Attachment{
		MessageID:   messageID,
		Filename:    item.Filename,
		ContentType: contentType,
		Size:        size,
		URL:         url,
	})
}

func (p *AttachmentProcessor) content(ctx context.Context, item models.InboundAttachment) ([]byte, error) {
	if item.Content != "" {
		data, err := base64.StdEncoding.DecodeString(item.Content)
		if err != nil {
			// Some providers strip padding.
			data, err = base64.RawStdEncoding.DecodeString(item.Content)
		}
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return data, nil
	}
	if item.URL != "" {
		return p.fetch(ctx, item.URL)
	}
	return nil, fmt.Errorf("no content or url provided")
}

func (p *AttachmentProcessor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, p.fetchLimit))
	if err != nil {
		return nil, fmt.Errorf("fetch read: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch: empty body")
	}
	return data, nil
}

func (p *AttachmentProcessor) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
