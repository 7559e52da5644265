package quota

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// counterExpiry outlives the longest month so stale periods age out.
const counterExpiry = 40 * 24 * time.Hour

// RedisStore keeps counters in Redis so every process shares one view.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a RedisStore. Keys are "{prefix}{source}:{period}".
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, prefix: "quota:"}
}

func (s *RedisStore) key(source, period string) string {
	return s.prefix + source + ":" + period
}

// Usage implements Store.
func (s *RedisStore) Usage(ctx context.Context, source, period string) (int, error) {
	n, err := s.client.Get(ctx, s.key(source, period)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "quota: redis get")
	}
	return n, nil
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, source, period string) error {
	key := s.key(source, period)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, counterExpiry)
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "quota: redis incr")
	}
	return nil
}
