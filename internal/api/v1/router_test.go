package v1

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildesk-io/maildesk-ce/internal/database"
	"github.com/maildesk-io/maildesk-ce/internal/metrics"
)

func setupRouter(t *testing.T, db *database.DB, gatherer prometheus.Gatherer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := NewWebhookHandler(&fakeIngest{}, &fakeAudit{}, NewSignatureVerifier(""), nil, nil)
	NewRouter(engine, h, db).Setup(gatherer)
	return engine
}

func TestReadinessReady(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()
	mock.ExpectPing()

	engine := setupRouter(t, database.Wrap(conn, database.DriverPostgres), nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}

func TestReadinessDatabaseDown(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer conn.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	engine := setupRouter(t, database.Wrap(conn, database.DriverPostgres), nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Deliveries.WithLabelValues(metrics.OutcomeProcessed).Inc()

	engine := setupRouter(t, nil, reg)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "maildesk_webhook_deliveries_total"))
}

func TestRequestIDHeaderSet(t *testing.T) {
	engine := setupRouter(t, nil, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/email/health", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/email/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	engine.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get("X-Request-ID"))
}
