package alerter

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// Logger abstracts the logging library
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)
	Sync() error
}

// KafkaReader abstracts the price stream with explicit offset commits.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaWriter abstracts the alert topic producer.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RedisClient abstracts the fanout connection used to surface the latest
// alert to the read API.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Pipeline() redis.Pipeliner
	Close() error
}

// AlertPublisher makes an alert durable on the broker. Publish returning nil
// is the precondition for committing the originating offset.
type AlertPublisher interface {
	Publish(ctx context.Context, alert models.PriceAlert) error
}
