// Package dedup provides an optional redis fast-path that skips work
// for message ids seen recently. Real idempotency lives in the unique
// constraint on messages; this only saves round-trips on retry storms,
// so a redis outage degrades to passing everything through.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a seen message id is remembered. Mail
	// providers retry for at most a few days.
	DefaultTTL = 72 * time.Hour

	keyPrefix = "maildesk:seen:"
)

// Filter tracks which message ids have already been processed.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by redis.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{rdb: rdb, ttl: ttl}
}

// Seen reports whether the message id was already marked. On a fresh
// id it is marked atomically (SETNX) before returning false.
func (f *Filter) Seen(ctx context.Context, messageID string) (bool, error) {
	if f == nil || f.rdb == nil {
		return false, nil
	}
	set, err := f.rdb.SetNX(ctx, keyPrefix+messageID, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !set, nil
}

// Forget clears a mark so a failed pipeline run can be retried by the
// provider without the fast-path swallowing it.
func (f *Filter) Forget(ctx context.Context, messageID string) error {
	if f == nil || f.rdb == nil {
		return nil
	}
	return f.rdb.Del(ctx, keyPrefix+messageID).Err()
}
