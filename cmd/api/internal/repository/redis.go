package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

const (
	keyCurrentPrefix = "crypto:current:"
	keyStatsPrefix   = "crypto:stats:"
	alertChannelGlob = "alerts.*"
)

// Compile-time check to ensure RedisStore implements CryptoStore
var _ CryptoStore = (*RedisStore)(nil)

type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// ListSymbols walks the current-price keys with SCAN so the request path
// never blocks Redis the way KEYS would. SCAN may repeat a key across
// iterations, hence the set.
func (r *RedisStore) ListSymbols(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyCurrentPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan symbols: %w", err)
		}
		for _, key := range keys {
			seen[strings.TrimPrefix(key, keyCurrentPrefix)] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (r *RedisStore) GetCurrentPrice(ctx context.Context, symbol string) (models.PriceEvent, error) {
	raw, err := r.client.Get(ctx, keyCurrentPrefix+strings.ToUpper(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PriceEvent{}, ErrNotFound
	}
	if err != nil {
		return models.PriceEvent{}, fmt.Errorf("get current price for %s: %w", symbol, err)
	}

	var event models.PriceEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return models.PriceEvent{}, fmt.Errorf("decode current price for %s: %w", symbol, err)
	}
	return event, nil
}

func (r *RedisStore) GetAllCurrentPrices(ctx context.Context) ([]models.PriceEvent, error) {
	symbols, err := r.ListSymbols(ctx)
	if err != nil {
		return nil, err
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = keyCurrentPrefix + sym
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get all current prices: %w", err)
	}

	events := make([]models.PriceEvent, 0, len(results))
	for _, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			continue
		}
		var event models.PriceEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *RedisStore) GetStats(ctx context.Context, symbol string) (models.PriceStats, error) {
	raw, err := r.client.Get(ctx, keyStatsPrefix+strings.ToUpper(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PriceStats{}, ErrNotFound
	}
	if err != nil {
		return models.PriceStats{}, fmt.Errorf("get stats for %s: %w", symbol, err)
	}

	var stats models.PriceStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return models.PriceStats{}, fmt.Errorf("decode stats for %s: %w", symbol, err)
	}
	return stats, nil
}

// GetNews reads the cache entry stored directly under the date key. Expiry
// is handled by Redis itself, so an expired entry is indistinguishable from
// one that never existed.
func (r *RedisStore) GetNews(ctx context.Context, date string) ([]byte, error) {
	raw, err := r.client.Get(ctx, date).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get news for %s: %w", date, err)
	}
	return raw, nil
}

// RunPubSub streams every published alert to the callback until ctx ends.
func (r *RedisStore) RunPubSub(ctx context.Context, onAlert func(symbol string, payload []byte)) {
	pubsub := r.client.PSubscribe(ctx, alertChannelGlob)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			parts := strings.SplitN(msg.Channel, ".", 2)
			if len(parts) < 2 {
				continue
			}
			onAlert(parts[1], []byte(msg.Payload))
		}
	}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
