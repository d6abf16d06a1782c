package feed

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// PricePublisher writes one keyed message per price event. The write is
// synchronous: the returned error is the delivery result, there is no
// completion callback to lose.
type PricePublisher struct {
	logger *zap.Logger
	writer KafkaWriter
}

func NewPricePublisher(logger *zap.Logger, writer KafkaWriter) *PricePublisher {
	return &PricePublisher{logger: logger, writer: writer}
}

func (p *PricePublisher) PublishPrices(ctx context.Context, events []models.PriceEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal price event for %s: %w", event.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.Symbol), // Key ensures partition ordering
			Value: payload,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d price events: %w", len(msgs), err)
	}

	for _, event := range events {
		p.logger.Debug("Published price",
			zap.String("symbol", event.Symbol), zap.String("price_usd", event.PriceUsd.String()))
	}
	return nil
}
