package backfill

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

const dateLayout = "2006-01-02"

// Worker consumes backfill requests and populates the news cache. A failed
// request is retried in place, paced by retryDelay and bounded by the
// per-date attempt counter: the loop never fetches the next request while an
// earlier one is unresolved, because committing a later offset would mark
// the failed one consumed. The counter survives in Redis, so redeliveries
// after a restart keep counting against the same bound.
type Worker struct {
	logger      Logger
	reader      KafkaReader
	source      NewsSource
	store       NewsStore
	maxAttempts int
	retryDelay  time.Duration
}

func NewWorker(logger Logger, reader KafkaReader, source NewsSource, store NewsStore, maxAttempts int, retryDelay time.Duration) *Worker {
	return &Worker{
		logger:      logger,
		reader:      reader,
		source:      source,
		store:       store,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Backfill Worker Started", zap.Int("max_attempts", w.maxAttempts))

	for {
		m, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			w.logger.Error("Kafka Fetch Error", zap.Error(err))
			continue
		}

		date, ok := parseRequest(m.Value)
		if !ok {
			// Poison request: ack and drop.
			w.logger.Error("Invalid backfill request, skipping",
				zap.ByteString("value", m.Value), zap.Int64("offset", m.Offset))
			w.commit(ctx, m)
			continue
		}

		w.handle(ctx, m, date)
	}
}

func (w *Worker) handle(ctx context.Context, m kafka.Message, date string) {
	for {
		attempts, err := w.store.BumpAttempts(ctx, date)
		if err != nil {
			w.logger.Error("Attempt counter unavailable", zap.Error(err), zap.String("date", date))
			attempts = 1 // fail open, the fetch still runs
		}
		if attempts > int64(w.maxAttempts) {
			w.logger.Warn("Backfill attempts exhausted, dropping request",
				zap.String("date", date), zap.Int64("attempts", attempts))
			w.commit(ctx, m)
			return
		}

		payload, err := w.source.Fetch(ctx, date)
		if err != nil {
			w.logger.Error("External news fetch failed, retrying",
				zap.Error(err), zap.String("date", date), zap.Int64("attempt", attempts))
			if !w.pause(ctx) {
				return // shutdown mid-retry, offset stays uncommitted
			}
			continue
		}

		if err := w.store.SaveNews(ctx, date, payload); err != nil {
			w.logger.Error("Cache write failed, retrying", zap.Error(err), zap.String("date", date))
			if !w.pause(ctx) {
				return
			}
			continue
		}

		if err := w.store.ClearAttempts(ctx, date); err != nil {
			w.logger.Warn("Could not clear attempt counter", zap.Error(err), zap.String("date", date))
		}

		w.logger.Info("News cached", zap.String("date", date), zap.Int("bytes", len(payload)))
		w.commit(ctx, m)
		return
	}
}

// pause waits out the retry delay; false means the run context ended.
func (w *Worker) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.retryDelay):
		return true
	}
}

// commit acknowledges a request after the cache entry is durable (or the
// request was deliberately dropped).
func (w *Worker) commit(ctx context.Context, m kafka.Message) {
	if err := w.reader.CommitMessages(ctx, m); err != nil {
		w.logger.Error("Offset Commit Error",
			zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
	}
}

// parseRequest accepts the JSON BackfillRequest envelope or a bare date
// string, and insists on a real YYYY-MM-DD date either way.
func parseRequest(value []byte) (string, bool) {
	date := string(value)

	var req models.BackfillRequest
	if err := json.Unmarshal(value, &req); err == nil && req.Date != "" {
		date = req.Date
	}

	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", false
	}
	return date, true
}
