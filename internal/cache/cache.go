// Package cache holds enrichment results keyed by entity and field.
package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/risk-enrichment/internal/model"
)

// Cache is a key-value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key. ok is false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key returns the cache key for one enrichment field of an entity.
func Key(entityID string, field model.Field) string {
	return "enrich:" + entityID + ":" + string(field)
}

// DefaultTimeout bounds a single cache operation.
const DefaultTimeout = 500 * time.Millisecond

// Safe wraps a Cache so that it never fails its caller. Errors and
// timeouts read as misses; failed writes are logged and dropped.
type Safe struct {
	next    Cache
	timeout time.Duration
}

// NewSafe wraps next. A non-positive timeout uses DefaultTimeout.
func NewSafe(next Cache, timeout time.Duration) *Safe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Safe{next: next, timeout: timeout}
}

// Get returns the cached value, or ok=false on a miss or any failure.
func (s *Safe) Get(ctx context.Context, key string) ([]byte, bool) {
	if s == nil || s.next == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, ok, err := s.next.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: get failed, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, false
	}
	return v, ok
}

// Set stores value. Failures are logged.
func (s *Safe) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if s == nil || s.next == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.next.Set(ctx, key, value, ttl); err != nil {
		zap.L().Warn("cache: set failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
