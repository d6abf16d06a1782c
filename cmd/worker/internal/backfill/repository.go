package backfill

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptsKeyPrefix = "news:attempts:"
	// attemptsTTL keeps the counter from outliving the redelivery horizon.
	attemptsTTL = 24 * time.Hour
)

// Compile-time check to ensure RedisNewsStore implements NewsStore
var _ NewsStore = (*RedisNewsStore)(nil)

// RedisNewsStore keeps cache entries keyed directly by date with a TTL, the
// same shape the read API looks them up by.
type RedisNewsStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisNewsStore(client redis.UniversalClient, ttl time.Duration) *RedisNewsStore {
	return &RedisNewsStore{client: client, ttl: ttl}
}

func (r *RedisNewsStore) SaveNews(ctx context.Context, date string, payload []byte) error {
	return r.client.Set(ctx, date, payload, r.ttl).Err()
}

func (r *RedisNewsStore) BumpAttempts(ctx context.Context, date string) (int64, error) {
	key := attemptsKeyPrefix + date
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, attemptsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *RedisNewsStore) ClearAttempts(ctx context.Context, date string) error {
	return r.client.Del(ctx, attemptsKeyPrefix+date).Err()
}
