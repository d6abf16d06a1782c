package cacheaside

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// KafkaWriter abstracts the backfill-request topic producer.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBackfillPublisher publishes backfill requests. The write is
// synchronous so the coordinator learns about a refused publish and can
// clear its in-flight marker.
type KafkaBackfillPublisher struct {
	writer KafkaWriter
}

func NewKafkaBackfillPublisher(writer KafkaWriter) *KafkaBackfillPublisher {
	return &KafkaBackfillPublisher{writer: writer}
}

func (p *KafkaBackfillPublisher) RequestBackfill(ctx context.Context, date string) error {
	payload, err := json.Marshal(models.BackfillRequest{
		ID:   uuid.NewString(),
		Date: date,
	})
	if err != nil {
		return fmt.Errorf("marshal backfill request for %s: %w", date, err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		return fmt.Errorf("publish backfill request for %s: %w", date, err)
	}
	return nil
}
