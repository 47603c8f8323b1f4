// Package storage holds attachment content. Backends are selected by
// configuration; all of them return a durable retrieval URL for the
// stored bytes.
package storage

import (
	"context"
	"fmt"
)

// Object is one attachment's raw bytes plus metadata.
type Object struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Backend stores attachment content.
type Backend interface {
	// Store persists the object under the message it belongs to and
	// returns its durable URL.
	Store(ctx context.Context, messageID string, obj *Object) (string, error)

	// HealthCheck verifies the backend is operational.
	HealthCheck(ctx context.Context) error

	// Name identifies the backend in logs.
	Name() string
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend string // "filesystem" or "database"
	Path    string // filesystem root
	BaseURL string // public prefix for filesystem URLs
}

// ErrUnknownBackend is returned for unrecognized backend names.
type ErrUnknownBackend struct {
	Backend string
}

func (e *ErrUnknownBackend) Error() string {
	return fmt.Sprintf("storage: unknown backend %q", e.Backend)
}
