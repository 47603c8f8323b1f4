package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildesk-io/maildesk-ce/internal/models"
)

func TestWebhookLogAppend(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookLogRepository(db)

	mock.ExpectQuery("INSERT INTO webhook_logs").
		WithArgs("email", []byte(`{"messageId":"a@x"}`), sqlmock.AnyArg(),
			models.WebhookStatusReceived, "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	id, err := repo.Append(context.Background(), &models.WebhookLog{
		ChannelType: "email",
		Payload:     []byte(`{"messageId":"a@x"}`),
		Headers:     map[string]string{"content-type": "application/json"},
		Status:      models.WebhookStatusReceived,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookLogAppendWrapsInvalidPayload(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookLogRepository(db)

	// Garbage bytes get stored as a JSON string so the column stays
	// valid JSON.
	mock.ExpectQuery("INSERT INTO webhook_logs").
		WithArgs("email", []byte(`"not json at all"`), sqlmock.AnyArg(),
			models.WebhookStatusError, "parse failure", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

	_, err := repo.Append(context.Background(), &models.WebhookLog{
		ChannelType: "email",
		Payload:     []byte("not json at all"),
		Status:      models.WebhookStatusError,
		Error:       "parse failure",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookLogListRecent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookLogRepository(db)

	rows := sqlmock.NewRows([]string{"id", "channel_type", "payload", "headers", "status", "error", "created_at"}).
		AddRow(int64(2), "email", []byte(`{}`), []byte(`{"x":"y"}`), "error", "boom", time.Now()).
		AddRow(int64(1), "email", []byte(`{}`), []byte(`{}`), "error", "earlier", time.Now().Add(-time.Minute))
	mock.ExpectQuery("FROM webhook_logs").
		WithArgs("error").
		WillReturnRows(rows)

	entries, err := repo.ListRecent(context.Background(), "error", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0].Error)
	assert.Equal(t, "y", entries[0].Headers["x"])
}

func TestWebhookLogDeleteOlderThan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookLogRepository(db)

	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM webhook_logs").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 17))

	n, err := repo.DeleteOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)
}
