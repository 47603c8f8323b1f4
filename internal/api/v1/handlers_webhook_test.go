package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildesk-io/maildesk-ce/internal/models"
	"github.com/maildesk-io/maildesk-ce/internal/service"
)

type fakeIngest struct {
	result *service.Result
	err    error
	got    *models.InboundEmail
}

func (f *fakeIngest) Process(_ context.Context, email *models.InboundEmail) (*service.Result, error) {
	f.got = email
	return f.result, f.err
}

type fakeAudit struct {
	entries []*models.WebhookLog
	err     error
}

func (f *fakeAudit) Append(_ context.Context, entry *models.WebhookLog) (int64, error) {
	f.entries = append(f.entries, entry)
	return int64(len(f.entries)), f.err
}

func newTestRouter(ingest *fakeIngest, audit *fakeAudit, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(ingest, audit, NewSignatureVerifier(secret), nil, nil)
	r := gin.New()
	r.POST("/email", h.HandleInboundEmail)
	r.GET("/email/health", h.HandleHealth)
	return r
}

func validPayload(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"messageId": "<a@mail.example>",
		"from":      map[string]string{"email": "anna@example.com", "name": "Anna"},
		"to":        []map[string]string{{"email": "support@maildesk.example"}},
		"subject":   "Printer broken",
		"text":      "It will not print.",
	})
	require.NoError(t, err)
	return raw
}

func postWebhook(r *gin.Engine, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/email", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleInboundEmailSuccess(t *testing.T) {
	ingest := &fakeIngest{result: &service.Result{
		TicketID:       "ticket-1",
		TicketNumber:   42,
		ConversationID: "conv-1",
		MessageID:      "msg-1",
	}}
	audit := &fakeAudit{}
	r := newTestRouter(ingest, audit, "")

	w := postWebhook(r, validPayload(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			TicketID     string `json:"ticketId"`
			TicketNumber int64  `json:"ticketNumber"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "ticket-1", resp.Data.TicketID)
	assert.Equal(t, int64(42), resp.Data.TicketNumber)

	require.Len(t, audit.entries, 2)
	assert.Equal(t, models.WebhookStatusReceived, audit.entries[0].Status)
	assert.Equal(t, models.WebhookStatusProcessed, audit.entries[1].Status)
	assert.Equal(t, "application/json", audit.entries[0].Headers["content-type"])
}

func TestHandleInboundEmailMissingSignature(t *testing.T) {
	ingest := &fakeIngest{}
	audit := &fakeAudit{}
	r := newTestRouter(ingest, audit, "topsecret")

	w := postWebhook(r, validPayload(t), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, ingest.got, "pipeline must not run on auth failure")

	// The pre-processing audit row exists even for rejected deliveries.
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.WebhookStatusReceived, audit.entries[0].Status)
}

func TestHandleInboundEmailSignedDelivery(t *testing.T) {
	ingest := &fakeIngest{result: &service.Result{TicketID: "ticket-1", TicketNumber: 1}}
	r := newTestRouter(ingest, &fakeAudit{}, "topsecret")

	body := validPayload(t)
	w := postWebhook(r, body, map[string]string{SignatureHeader: sign("topsecret", body)})
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, ingest.got)
	assert.Equal(t, "<a@mail.example>", ingest.got.MessageID)
}

func TestHandleInboundEmailMalformedJSON(t *testing.T) {
	ingest := &fakeIngest{}
	audit := &fakeAudit{}
	r := newTestRouter(ingest, audit, "")

	w := postWebhook(r, []byte("{not json"), nil)
	// Still 200: the provider must not retry a permanently broken body.
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "(body)")

	require.Len(t, audit.entries, 2)
	assert.Equal(t, models.WebhookStatusError, audit.entries[1].Status)
}

func TestHandleInboundEmailValidationError(t *testing.T) {
	r := newTestRouter(&fakeIngest{}, &fakeAudit{}, "")

	raw, _ := json.Marshal(map[string]any{"messageId": "<a@x>"})
	w := postWebhook(r, raw, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "from.email")
}

func TestHandleInboundEmailPipelineError(t *testing.T) {
	ingest := &fakeIngest{err: errors.New("no active email channel")}
	audit := &fakeAudit{}
	r := newTestRouter(ingest, audit, "")

	w := postWebhook(r, validPayload(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "no active email channel")
	assert.Equal(t, models.WebhookStatusError, audit.entries[1].Status)
}

func TestHandleHealth(t *testing.T) {
	r := newTestRouter(&fakeIngest{}, &fakeAudit{}, "")

	req := httptest.NewRequest(http.MethodGet, "/email/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.NotEmpty(t, resp["timestamp"])
}
