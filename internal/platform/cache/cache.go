// Package cache provides the metadata cache tiers. Conversion results are
// never cached; only immutable or slow-moving values (adapter descriptions,
// token decimals, endpoint health) go through here.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key is not present in any tier
	ErrNotFound = errors.New("cache: key not found")

	// ErrInvalidValue is returned when a cached value cannot be decoded
	ErrInvalidValue = errors.New("cache: invalid value")
)

// Cache defines the interface for cache operations
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (any, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes a key from cache
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection
	Close() error
}

// DescriptionKey is the cache key for an adapter's display description.
func DescriptionKey(adapterName string) string {
	return fmt.Sprintf("adapter:%s:description", adapterName)
}
