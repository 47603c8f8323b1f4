package storage

import (
	"github.com/maildesk-io/maildesk-ce/internal/database"
)

// New builds the configured backend.
func New(cfg Config, db *database.DB) (Backend, error) {
	switch cfg.Backend {
	case "", "filesystem":
		return NewFilesystemBackend(cfg.Path, cfg.BaseURL)
	case "database":
		return NewDatabaseBackend(db), nil
	default:
		return nil, &ErrUnknownBackend{Backend: cfg.Backend}
	}
}
