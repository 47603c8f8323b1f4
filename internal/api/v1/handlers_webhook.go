package v1

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maildesk-io/maildesk-ce/internal/metrics"
	"github.com/maildesk-io/maildesk-ce/internal/models"
	"github.com/maildesk-io/maildesk-ce/internal/service"
)

type ingestPipeline interface {
	Process(ctx context.Context, email *models.InboundEmail) (*service.Result, error)
}

type auditLog interface {
	Append(ctx context.Context, entry *models.WebhookLog) (int64, error)
}

// WebhookHandler terminates the inbound email webhook.
type WebhookHandler struct {
	ingest   ingestPipeline
	logs     auditLog
	verifier *SignatureVerifier
	metrics  *metrics.Metrics
	logger   *log.Logger
}

// NewWebhookHandler creates the handler.
func NewWebhookHandler(ingest ingestPipeline, logs auditLog, verifier *SignatureVerifier, m *metrics.Metrics, logger *log.Logger) *WebhookHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookHandler{
		ingest:   ingest,
		logs:     logs,
		verifier: verifier,
		metrics:  m,
		logger:   logger,
	}
}

// HandleInboundEmail processes one webhook delivery. Apart from a
// failed signature check, the endpoint always answers 200: a malformed
// mail would otherwise be retried by the provider forever. The true
// error goes to the audit trail and the response body.
func (h *WebhookHandler) HandleInboundEmail(c *gin.Context) {
	started := time.Now()
	raw, err := c.GetRawData()
	if err != nil {
		h.logger.Printf("webhook: read body: %v", err)
		raw = nil
	}
	headers := flattenHeaders(c.Request.Header)

	// The pre-processing audit row is an independent append; nothing
	// downstream can roll it back.
	h.appendLog(c.Request.Context(), raw, headers, models.WebhookStatusReceived, "")

	if err := h.verifier.Verify(raw, c.GetHeader(SignatureHeader)); err != nil {
		h.count(metrics.OutcomeUnauthorized)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	email, err := h.decode(raw)
	if err == nil {
		var result *service.Result
		result, err = h.ingest.Process(c.Request.Context(), email)
		if err == nil {
			h.finish(c, raw, headers, result, started)
			return
		}
	}

	h.logger.Printf("webhook: %v", err)
	h.appendLog(c.Request.Context(), raw, headers, models.WebhookStatusError, err.Error())
	h.count(metrics.OutcomeError)
	h.observe(started)
	c.JSON(http.StatusOK, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// HandleHealth reports liveness with no side effects.
func (h *WebhookHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *WebhookHandler) decode(raw []byte) (*models.InboundEmail, error) {
	var email models.InboundEmail
	if err := json.Unmarshal(raw, &email); err != nil {
		return nil, &models.FieldError{Field: "(body)", Reason: "not valid JSON"}
	}
	if err := email.Validate(); err != nil {
		return nil, err
	}
	return &email, nil
}

func (h *WebhookHandler) finish(c *gin.Context, raw []byte, headers map[string]string, result *service.Result, started time.Time) {
	h.appendLog(c.Request.Context(), raw, headers, models.WebhookStatusProcessed, "")
	if result.Duplicate {
		h.count(metrics.OutcomeDuplicate)
	} else {
		h.count(metrics.OutcomeProcessed)
	}
	h.observe(started)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

func (h *WebhookHandler) appendLog(ctx context.Context, payload []byte, headers map[string]string, status, errText string) {
	if h.logs == nil {
		return
	}
	if _, err := h.logs.Append(ctx, &models.WebhookLog{
		ChannelType: models.ChannelTypeEmail,
		Payload:     payload,
		Headers:     headers,
		Status:      status,
		Error:       errText,
	}); err != nil {
		h.logger.Printf("webhook: audit append failed: %v", err)
	}
}

func (h *WebhookHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.Deliveries.WithLabelValues(outcome).Inc()
	}
}

func (h *WebhookHandler) observe(started time.Time) {
	if h.metrics != nil {
		h.metrics.ProcessingSeconds.Observe(time.Since(started).Seconds())
	}
}

func flattenHeaders(src http.Header) map[string]string {
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
