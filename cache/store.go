// Package cache stores successful fetch responses keyed by a hash of the
// request shape. Redis is the primary store; when it is unavailable the
// layer degrades to treating every lookup as a miss.
package cache

import (
	"context"
	"time"
)

// Store is the raw byte store beneath the cache layer.
type Store interface {
	// Get returns the stored value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
