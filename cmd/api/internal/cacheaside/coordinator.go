package cacheaside

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/api/internal/repository"
)

// NewsReader is the slice of the state store the coordinator reads from.
type NewsReader interface {
	GetNews(ctx context.Context, date string) ([]byte, error)
}

// BackfillPublisher asks the worker fleet to populate one date.
type BackfillPublisher interface {
	RequestBackfill(ctx context.Context, date string) error
}

// Coordinator serves cache-aside reads. A miss publishes a backfill request
// at most once per in-flight window and immediately reports "not found";
// callers poll again once the worker has populated the entry.
//
// The in-flight marker is in-memory and per-instance: with several API
// replicas a miss can trigger up to one request per replica, a bounded
// duplication the at-least-once worker already tolerates. Persisting the
// marker was deliberately rejected to keep the read path to a single store
// round-trip.
type Coordinator struct {
	store     NewsReader
	publisher BackfillPublisher
	logger    *zap.Logger
	window    time.Duration
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]time.Time
}

func NewCoordinator(store NewsReader, publisher BackfillPublisher, logger *zap.Logger, window time.Duration) *Coordinator {
	return &Coordinator{
		store:     store,
		publisher: publisher,
		logger:    logger,
		window:    window,
		now:       time.Now,
		inflight:  make(map[string]time.Time),
	}
}

// Read returns the cached payload for the date, or repository.ErrNotFound on
// a miss. The read never waits on the asynchronous backfill.
func (c *Coordinator) Read(ctx context.Context, date string) ([]byte, error) {
	payload, err := c.store.GetNews(ctx, date)
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if c.markInflight(date) {
		c.logger.Info("Cache miss, requesting backfill", zap.String("date", date))
		if err := c.publisher.RequestBackfill(ctx, date); err != nil {
			// Clear the marker so the next read can retry the publish.
			c.clearInflight(date)
			c.logger.Error("Backfill publish failed", zap.Error(err), zap.String("date", date))
		}
	} else {
		c.logger.Debug("Cache miss, backfill already in flight", zap.String("date", date))
	}

	return nil, repository.ErrNotFound
}

// markInflight reports whether this miss should trigger a backfill request.
// Expired markers are pruned in passing so the map cannot grow unbounded.
func (c *Coordinator) markInflight(date string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, t := range c.inflight {
		if now.Sub(t) >= c.window {
			delete(c.inflight, key)
		}
	}

	if t, ok := c.inflight[date]; ok && now.Sub(t) < c.window {
		return false
	}
	c.inflight[date] = now
	return true
}

func (c *Coordinator) clearInflight(date string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, date)
}
