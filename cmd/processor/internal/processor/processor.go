package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/processor/internal/repository"
	"github.com/alexlondon07/cryptostream/pkg/config"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

// applyRetryDelay paces in-place retries of a failed stats write.
const applyRetryDelay = 200 * time.Millisecond

// Processor fans messages out to a worker pool sharded by partition. Kafka
// group commits are absolute per-partition positions: committing offset N
// marks every earlier offset of that partition consumed. Giving each
// partition a single owning worker, and never advancing that worker past a
// failed write, is what keeps a commit from swallowing an earlier failure.
type Processor struct {
	cfg        *config.Config
	logger     Logger
	store      repository.StatsStore
	reader     KafkaReader
	numWorkers int
}

func NewProcessor(cfg *config.Config, logger Logger, store repository.StatsStore, reader KafkaReader) *Processor {
	return &Processor{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		reader:     reader,
		numWorkers: cfg.Processor.NumWorkers,
	}
}

func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan kafka.Message, p.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < p.numWorkers; i++ {
		workerChans[i] = make(chan kafka.Message, 100)
		wg.Add(1)
		go p.worker(ctx, i, workerChans[i], &wg)
	}

	fetchDone := make(chan struct{})
	go func() {
		defer close(fetchDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.numWorkers))
		for {
			m, err := p.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Fetch Error", zap.Error(err))
				continue
			}

			// Deterministic sharding: a partition is owned by one worker, so
			// its offsets are processed and committed in fetch order.
			workerID := getWorkerID(m.Partition, p.numWorkers)

			// Blocking send: every fold counts, so backpressure is applied
			// to the fetch loop instead of dropping events.
			select {
			case workerChans[workerID] <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")

	// The fetch goroutine may be parked in a channel send; it has to be gone
	// before the channels close.
	<-fetchDone
	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (p *Processor) worker(ctx context.Context, id int, msgs <-chan kafka.Message, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background context for writes and commits: a message is either fully
	// processed and committed, or left uncommitted for redelivery. The run
	// context only decides when to stop retrying.
	writeCtx := context.Background()

	for m := range msgs {
		var event models.PriceEvent
		if err := json.Unmarshal(m.Value, &event); err != nil {
			// Poison message: ack and skip so it cannot block the partition.
			p.logger.Error("JSON Unmarshal Error, skipping message",
				zap.Error(err), zap.String("key", string(m.Key)), zap.Int64("offset", m.Offset))
			p.commit(writeCtx, m)
			continue
		}

		updated, applied, err := p.applyWithRetry(ctx, writeCtx, event, m)
		if err != nil {
			// Still failing at shutdown. Nothing from this partition may be
			// committed past this offset, so the worker stops here and the
			// broker redelivers from it.
			p.logger.Error("Stats Update Abandoned",
				zap.Error(err), zap.String("symbol", event.Symbol),
				zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
			return
		}

		if !applied {
			p.logger.Debug("Skipping duplicate event",
				zap.String("symbol", event.Symbol),
				zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
		} else {
			p.logger.Debug("Processed",
				zap.String("symbol", event.Symbol), zap.Int("worker_id", id),
				zap.Int64("sample_count", updated.SampleCount))
		}
		p.commit(writeCtx, m)
	}
}

// applyWithRetry retries the durable write in place until it succeeds or the
// run context ends. Advancing past a failed offset is not an option: a later
// commit on the same partition would mark it consumed.
func (p *Processor) applyWithRetry(ctx, writeCtx context.Context, event models.PriceEvent, m kafka.Message) (models.PriceStats, bool, error) {
	for {
		updated, applied, err := p.store.ApplyEvent(writeCtx, event, m.Partition, m.Offset)
		if err == nil {
			return updated, applied, nil
		}

		p.logger.Error("Stats Update Error, retrying",
			zap.Error(err), zap.String("symbol", event.Symbol), zap.Int64("offset", m.Offset))

		select {
		case <-ctx.Done():
			return models.PriceStats{}, false, err
		case <-time.After(applyRetryDelay):
		}
	}
}

// commit acknowledges a message after its effects are durable (or after it
// was deliberately skipped). Ordering: durable write first, commit second.
func (p *Processor) commit(ctx context.Context, m kafka.Message) {
	if err := p.reader.CommitMessages(ctx, m); err != nil {
		p.logger.Error("Offset Commit Error",
			zap.Error(err), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
	}
}

func getWorkerID(partition, numWorkers int) int {
	return partition % numWorkers
}
