// Package cache holds short-lived keyed values: login OTPs and the revoked
// token list. RedisStore shares them across instances; MemoryStore keeps
// them in process for single-instance setups and tests.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a string key/value store with per-entry expiry.
type Store interface {
	// Set stores value under key, replacing any previous value. A ttl <= 0
	// means the entry does not expire.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the live value for key or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// CompareAndDelete removes key only if it currently holds value and
	// reports whether it did. Concurrent callers cannot both succeed.
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)

	Close() error
}
