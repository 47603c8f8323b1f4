package database

import (
	"context"
	"fmt"
)

// Migrate applies the pipeline schema. Statements are idempotent so the
// server can run this on every start.
func Migrate(ctx context.Context, db *DB) error {
	var stmts []string
	switch db.Driver() {
	case DriverPostgres:
		stmts = postgresSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("database: no schema for driver %q", db.Driver())
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS customers_email_key ON customers (lower(email))`,
	`CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL REFERENCES channels(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		metadata JSONB NOT NULL DEFAULT '{}',
		last_message_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE SEQUENCE IF NOT EXISTS ticket_number_seq`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		number BIGINT NOT NULL DEFAULT nextval('ticket_number_seq') UNIQUE,
		conversation_id TEXT NOT NULL UNIQUE REFERENCES conversations(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		channel_id TEXT NOT NULL REFERENCES channels(id),
		subject TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		priority TEXT NOT NULL DEFAULT 'normal',
		assignee_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS tickets_customer_updated_idx ON tickets (customer_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_type TEXT NOT NULL,
		sender_id TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text',
		preview TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL UNIQUE,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages(id),
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		size BIGINT NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS attachment_blobs (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		data BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
		id BIGSERIAL PRIMARY KEY,
		channel_type TEXT NOT NULL,
		payload JSONB,
		headers JSONB,
		status TEXT NOT NULL DEFAULT 'received',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS webhook_logs_created_idx ON webhook_logs (created_at)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS customers_email_key ON customers (lower(email))`,
	`CREATE TABLE IF NOT EXISTS channels (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL REFERENCES channels(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		metadata TEXT NOT NULL DEFAULT '{}',
		last_message_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL UNIQUE REFERENCES conversations(id),
		customer_id TEXT NOT NULL REFERENCES customers(id),
		channel_id TEXT NOT NULL REFERENCES channels(id),
		subject TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		priority TEXT NOT NULL DEFAULT 'normal',
		assignee_id TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS tickets_customer_updated_idx ON tickets (customer_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		sender_type TEXT NOT NULL,
		sender_id TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT 'text',
		preview TEXT NOT NULL DEFAULT '',
		external_id TEXT NOT NULL UNIQUE,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages(id),
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		size INTEGER NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS attachment_blobs (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
		data BLOB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_type TEXT NOT NULL,
		payload TEXT,
		headers TEXT,
		status TEXT NOT NULL DEFAULT 'received',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS webhook_logs_created_idx ON webhook_logs (created_at)`,
}
