package cache

import (
	"context"
	"time"

	"github.com/alphagrowth/euler-oracle-adapter-yearn/internal/platform/observability"
)

// l1MaxTTL caps the in-process tier so stale metadata cannot outlive one
// Redis TTL by much.
const l1MaxTTL = time.Minute

// LayeredCache reads through an in-memory L1 into a shared Redis L2 and
// writes through to both. Either tier may be nil.
type LayeredCache struct {
	l1      Cache
	l2      Cache
	metrics *observability.Metrics
}

// NewLayeredCache creates a layered cache. metrics may be nil.
func NewLayeredCache(l1, l2 Cache, metrics *observability.Metrics) *LayeredCache {
	return &LayeredCache{l1: l1, l2: l2, metrics: metrics}
}

// Get checks L1, then L2, backfilling L1 on an L2 hit
func (lc *LayeredCache) Get(ctx context.Context, key string) (any, error) {
	if lc.l1 != nil {
		if val, err := lc.l1.Get(ctx, key); err == nil {
			lc.recordHit(ctx, "l1")
			return val, nil
		}
		lc.recordMiss(ctx, "l1")
	}

	if lc.l2 != nil {
		val, err := lc.l2.Get(ctx, key)
		if err == nil {
			lc.recordHit(ctx, "l2")
			if lc.l1 != nil {
				_ = lc.l1.Set(ctx, key, val, l1MaxTTL)
			}
			return val, nil
		}
		lc.recordMiss(ctx, "l2")
	}

	return nil, ErrNotFound
}

// Set writes through to both tiers. L1 TTL is capped at l1MaxTTL. The write
// fails only when every present tier rejects it.
func (lc *LayeredCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	var l1Err, l2Err error

	if lc.l1 != nil {
		l1TTL := ttl
		if l1TTL > l1MaxTTL {
			l1TTL = l1MaxTTL
		}
		l1Err = lc.l1.Set(ctx, key, value, l1TTL)
	}

	if lc.l2 != nil {
		l2Err = lc.l2.Set(ctx, key, value, ttl)
	}

	if l1Err != nil && l2Err != nil {
		return l2Err
	}
	return nil
}

// Delete removes the key from both tiers
func (lc *LayeredCache) Delete(ctx context.Context, key string) error {
	var l1Err, l2Err error

	if lc.l1 != nil {
		l1Err = lc.l1.Delete(ctx, key)
	}
	if lc.l2 != nil {
		l2Err = lc.l2.Delete(ctx, key)
	}

	if l1Err != nil {
		return l1Err
	}
	return l2Err
}

// Close closes both tiers
func (lc *LayeredCache) Close() error {
	var l1Err, l2Err error

	if lc.l1 != nil {
		l1Err = lc.l1.Close()
	}
	if lc.l2 != nil {
		l2Err = lc.l2.Close()
	}

	if l1Err != nil {
		return l1Err
	}
	return l2Err
}

// InvalidateL1 drops only the in-process copy, forcing the next Get through
// to the shared tier.
func (lc *LayeredCache) InvalidateL1(ctx context.Context, key string) error {
	if lc.l1 != nil {
		return lc.l1.Delete(ctx, key)
	}
	return nil
}

func (lc *LayeredCache) recordHit(ctx context.Context, layer string) {
	if lc.metrics != nil {
		lc.metrics.RecordCacheHit(ctx, layer)
	}
}

func (lc *LayeredCache) recordMiss(ctx context.Context, layer string) {
	if lc.metrics != nil {
		lc.metrics.RecordCacheMiss(ctx, layer)
	}
}
