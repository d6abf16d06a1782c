package feed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// PriceSource is the external feed the scheduler polls.
type PriceSource interface {
	FetchPrices(ctx context.Context, ids []string) ([]models.PriceEvent, error)
}

// PriceSink receives each polled batch.
type PriceSink interface {
	PublishPrices(ctx context.Context, events []models.PriceEvent) error
}

// Scheduler polls the price source at a fixed interval and hands each batch
// to the publisher. A failed cycle is logged and the next one tries again;
// there is no catch-up for missed cycles.
type Scheduler struct {
	logger   *zap.Logger
	source   PriceSource
	sink     PriceSink
	coinIDs  []string
	interval time.Duration
	clock    Clock
}

func NewScheduler(
	logger *zap.Logger,
	source PriceSource,
	sink PriceSink,
	coinIDs []string,
	interval time.Duration,
	clock Clock,
) *Scheduler {
	return &Scheduler{
		logger:   logger,
		source:   source,
		sink:     sink,
		coinIDs:  coinIDs,
		interval: interval,
		clock:    clock,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Fetcher Started",
		zap.Strings("coin_ids", s.coinIDs), zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.RunCycle(ctx)
			s.clock.Sleep(s.interval)
		}
	}
}

// RunCycle performs one fetch-and-publish pass.
func (s *Scheduler) RunCycle(ctx context.Context) {
	events, err := s.source.FetchPrices(ctx, s.coinIDs)
	if err != nil {
		s.logger.Error("Price fetch failed", zap.Error(err))
		return
	}

	if err := s.sink.PublishPrices(ctx, events); err != nil {
		s.logger.Error("Price publish failed", zap.Error(err))
		return
	}

	s.logger.Debug("Completed price fetch cycle", zap.Int("events", len(events)))
}
