package backfill

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
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

// KafkaReader abstracts the backfill-request stream.
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewsSource fetches the external news payload for one date.
type NewsSource interface {
	Fetch(ctx context.Context, date string) ([]byte, error)
}

// NewsStore persists cache entries and the per-date attempt counter that
// bounds poison-request redelivery.
type NewsStore interface {
	SaveNews(ctx context.Context, date string, payload []byte) error
	BumpAttempts(ctx context.Context, date string) (int64, error)
	ClearAttempts(ctx context.Context, date string) error
}
