package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Redis is a Cache shared by every process pointed at the same server.
type Redis struct {
	client redis.Cmdable
}

// NewRedis creates a Redis cache over client.
func NewRedis(client redis.Cmdable) *Redis {
	return &Redis{client: client}
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: redis get")
	}
	return v, true, nil
}

// Set implements Cache. A non-positive ttl never expires.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return eris.Wrap(err, "cache: redis set")
	}
	return nil
}

// Open returns a Redis cache when client answers a ping, and an in-process
// cache otherwise.
func Open(ctx context.Context, client redis.Cmdable) Cache {
	if client == nil {
		zap.L().Info("cache: using in-process backend")
		return NewMemory(0)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("cache: redis unreachable, falling back to in-process backend", zap.Error(err))
		return NewMemory(0)
	}
	return NewRedis(client)
}
