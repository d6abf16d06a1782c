package alerter

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/detector"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

// publishRetryDelay paces in-place retries of a refused alert publish.
const publishRetryDelay = 200 * time.Millisecond

// Alerter consumes price events and turns threshold crossings into alerts.
// A single consume loop keeps per-symbol evaluation in arrival order; the
// detector's own locking covers the rebalance window where two instances
// may briefly see the same symbol.
//
// A fired alert is published in place until the broker accepts it: the loop
// never advances, so no later commit on the partition can mark the event
// consumed, and the computed alert (with the true previous price) is what
// gets retried rather than a re-evaluation against already-updated state.
type Alerter struct {
	logger    Logger
	detector  *detector.Detector
	publisher AlertPublisher
	reader    KafkaReader
}

func NewAlerter(logger Logger, det *detector.Detector, publisher AlertPublisher, reader KafkaReader) *Alerter {
	return &Alerter{
		logger:    logger,
		detector:  det,
		publisher: publisher,
		reader:    reader,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	a.logger.Info("Alerter Started")

	for {
		m, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			a.logger.Error("Kafka Fetch Error", zap.Error(err))
			continue
		}

		var event models.PriceEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			a.logger.Error("JSON Unmarshal Error, skipping message",
				zap.Error(err), zap.String("key", string(m.Key)), zap.Int64("offset", m.Offset))
			a.commit(ctx, m)
			continue
		}

		alert, fired := a.detector.Evaluate(event.Symbol, event.PriceUsd)
		if fired {
			if err := a.publishWithRetry(ctx, *alert, m.Offset); err != nil {
				// Shutdown while the broker keeps refusing. The offset stays
				// uncommitted, so the event is redelivered elsewhere.
				return nil
			}
		} else {
			a.logger.Debug("No alert", zap.String("symbol", event.Symbol))
		}

		a.commit(ctx, m)
	}
}

// publishWithRetry blocks until the alert is durable on the broker or the
// run context ends. Fetching the next message before this one is published
// would let its commit swallow the alert.
func (a *Alerter) publishWithRetry(ctx context.Context, alert models.PriceAlert, offset int64) error {
	for {
		err := a.publisher.Publish(ctx, alert)
		if err == nil {
			return nil
		}

		a.logger.Error("Alert Publish Error, retrying",
			zap.Error(err), zap.String("symbol", alert.Symbol), zap.Int64("offset", offset))

		select {
		case <-ctx.Done():
			return err
		case <-time.After(publishRetryDelay):
		}
	}
}

// commit acknowledges a message once its effects (if any) are durable.
func (a *Alerter) commit(ctx context.Context, m kafka.Message) {
	if err := a.reader.CommitMessages(ctx, m); err != nil {
		a.logger.Error("Offset Commit Error",
			zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
	}
}
