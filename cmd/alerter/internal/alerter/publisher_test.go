package alerter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/alerter"
	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/testutils"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

func sampleAlert() models.PriceAlert {
	return models.PriceAlert{
		ID:            "a-1",
		Symbol:        "BTC",
		AlertType:     models.AlertTypeIncrease,
		PreviousPrice: decimal.NewFromInt(100),
		CurrentPrice:  decimal.NewFromInt(106),
		ChangePercent: decimal.NewFromInt(6),
		Timestamp:     time.Now().UTC(),
		Message:       "BTC increased 6% from $100 to $106",
	}
}

func TestPublisher_WritesKafkaAndMirrorsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	writer := &testutils.MockKafkaWriter{}

	pub := alerter.NewPublisher(zap.NewNop(), writer, rdb)
	require.NoError(t, pub.Publish(context.Background(), sampleAlert()))

	require.Len(t, writer.Messages, 1)
	assert.Equal(t, "BTC", string(writer.Messages[0].Key))
	assert.True(t, mr.Exists("crypto:alert:BTC"))
}

func TestPublisher_KafkaFailureIsReturned(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	writer := &testutils.MockKafkaWriter{Err: errors.New("broker down")}

	pub := alerter.NewPublisher(zap.NewNop(), writer, rdb)
	err := pub.Publish(context.Background(), sampleAlert())

	require.Error(t, err)
	assert.False(t, mr.Exists("crypto:alert:BTC"), "failed publish must not fan out")
}
