package service

import (
	"errors"
)

// Pipeline error kinds. Only ErrUnauthorized surfaces as a non-200
// HTTP status; everything else is logged to the webhook audit trail
// and answered with success:false so the provider stops retrying a
// permanently failing payload.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBadPayload    = errors.New("bad payload")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrPersistence   = errors.New("persistence error")
)
