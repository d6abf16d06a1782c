package alerter

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

const (
	keyLatestAlertPrefix = "crypto:alert:"
	alertChannelPrefix   = "alerts."
	latestAlertTTL       = 24 * time.Hour
)

// Publisher writes alerts to the alerts topic and mirrors the latest alert
// into Redis (SET + PUBLISH in one pipeline, for the API websocket feed).
// The Kafka write is the durable path; the Redis fanout is best effort.
type Publisher struct {
	logger Logger
	writer KafkaWriter
	rdb    RedisClient
}

func NewPublisher(logger Logger, writer KafkaWriter, rdb RedisClient) *Publisher {
	return &Publisher{logger: logger, writer: writer, rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, alert models.PriceAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert for %s: %w", alert.Symbol, err)
	}

	// Synchronous write: the returned error is the delivery result.
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.Symbol),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish alert for %s: %w", alert.Symbol, err)
	}
	p.logger.Info("Published alert", zap.String("symbol", alert.Symbol), zap.String("message", alert.Message))

	pipe := p.rdb.Pipeline()
	pipe.Set(ctx, keyLatestAlertPrefix+alert.Symbol, payload, latestAlertTTL)
	pipe.Publish(ctx, alertChannelPrefix+alert.Symbol, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Redis alert fanout failed", zap.Error(err), zap.String("symbol", alert.Symbol))
	}

	return nil
}
