package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/alexlondon07/cryptostream/cmd/processor/internal/stats"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

const (
	keyCurrentPrefix = "crypto:current:"
	keyStatsPrefix   = "crypto:stats:"
	keyHistoryPrefix = "crypto:history:"

	// maxTxRetries bounds the optimistic-lock retry loop. Contention on a
	// single symbol is rare because partition assignment serializes it; the
	// loop only matters during partition reassignment.
	maxTxRetries = 5
)

// ErrTxRetriesExceeded is returned when the optimistic transaction kept
// losing the WATCH race. The caller should leave the offset uncommitted so
// the event is redelivered.
var ErrTxRetriesExceeded = errors.New("stats update: optimistic transaction retries exceeded")

// Compile-time check to ensure RedisStore implements StatsStore
var _ StatsStore = (*RedisStore)(nil)

type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// ApplyEvent performs the read-modify-write of the stats record under a
// WATCH on the stats key, so two owners of the same symbol (possible during
// a rebalance window) can never interleave a lost update. The current price
// and the history append ride in the same MULTI/EXEC.
func (r *RedisStore) ApplyEvent(ctx context.Context, event models.PriceEvent, partition int, offset int64) (models.PriceStats, bool, error) {
	statsKey := keyStatsPrefix + event.Symbol

	var (
		updated models.PriceStats
		applied bool
	)

	txf := func(tx *redis.Tx) error {
		current, err := r.loadStats(ctx, tx, statsKey, event)
		if err != nil {
			return err
		}

		updated, applied = stats.Fold(current, event, partition, offset, r.now())
		if !applied {
			return nil
		}

		statsPayload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal stats for %s: %w", event.Symbol, err)
		}
		eventPayload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event for %s: %w", event.Symbol, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, statsKey, statsPayload, 0)
			pipe.Set(ctx, keyCurrentPrefix+event.Symbol, eventPayload, 0)
			pipe.RPush(ctx, keyHistoryPrefix+event.Symbol, eventPayload)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, statsKey)
		if err == nil {
			return updated, applied, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return models.PriceStats{}, false, err
	}

	return models.PriceStats{}, false, ErrTxRetriesExceeded
}

func (r *RedisStore) loadStats(ctx context.Context, tx *redis.Tx, statsKey string, event models.PriceEvent) (models.PriceStats, error) {
	raw, err := tx.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return stats.Seed(event.Symbol, event.PriceUsd, r.now()), nil
	}
	if err != nil {
		return models.PriceStats{}, fmt.Errorf("get stats for %s: %w", event.Symbol, err)
	}

	var current models.PriceStats
	if err := json.Unmarshal(raw, &current); err != nil {
		return models.PriceStats{}, fmt.Errorf("decode stats for %s: %w", event.Symbol, err)
	}
	return current, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
