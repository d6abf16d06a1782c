package alerter_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/alerter"
	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/detector"
	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/testutils"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

func priceMessage(t *testing.T, symbol string, price float64, offset int64) kafka.Message {
	t.Helper()
	val, err := json.Marshal(models.PriceEvent{
		Symbol:    symbol,
		PriceUsd:  decimal.NewFromFloat(price),
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Key: []byte(symbol), Value: val, Offset: offset}
}

func run(t *testing.T, svc *alerter.Alerter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := svc.Run(ctx); err != nil {
		t.Logf("Alerter stopped: %v", err)
	}
}

func TestAlerter_EmitsAlertOnThresholdCrossing(t *testing.T) {
	msgs := []kafka.Message{
		priceMessage(t, "BTC", 100, 1),
		priceMessage(t, "BTC", 106, 2), // +6%
	}
	reader := &testutils.MockKafkaReader{Messages: msgs}
	publisher := &testutils.MockAlertPublisher{}

	svc := alerter.NewAlerter(zap.NewNop(), detector.NewDetector(5.0), publisher, reader)
	run(t, svc)

	publisher.Mu.Lock()
	defer publisher.Mu.Unlock()
	if len(publisher.Published) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(publisher.Published))
	}
	a := publisher.Published[0]
	if a.AlertType != models.AlertTypeIncrease {
		t.Errorf("Expected INCREASE, got %s", a.AlertType)
	}
	if !a.PreviousPrice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("previousPrice must be the prior price, got %s", a.PreviousPrice)
	}

	if got := len(reader.Committed); got != 2 {
		t.Errorf("Expected both offsets committed, got %d", got)
	}
}

func TestAlerter_PublishFailureBlocksCommit(t *testing.T) {
	msgs := []kafka.Message{
		priceMessage(t, "BTC", 100, 1),
		priceMessage(t, "BTC", 90, 2),  // -10%, alert fires but publish fails
		priceMessage(t, "ETH", 900, 3), // must never be reached
	}
	reader := &testutils.MockKafkaReader{Messages: msgs}
	publisher := &testutils.MockAlertPublisher{FailuresLeft: -1}

	svc := alerter.NewAlerter(zap.NewNop(), detector.NewDetector(5.0), publisher, reader)
	run(t, svc)

	reader.Mu.Lock()
	defer reader.Mu.Unlock()
	// Commits are absolute per-partition positions, so offset 3 committing
	// would mark the unpublished alert at offset 2 consumed. The loop must
	// hold at offset 2.
	if len(reader.Committed) != 1 || reader.Committed[0].Offset != 1 {
		t.Errorf("Only the non-alerting offset should commit, got %v", reader.Committed)
	}
}

func TestAlerter_AlertRetriedUntilBrokerRecovers(t *testing.T) {
	msgs := []kafka.Message{
		priceMessage(t, "BTC", 100, 1),
		priceMessage(t, "BTC", 110, 2), // +10%, first two publishes refused
	}
	reader := &testutils.MockKafkaReader{Messages: msgs}
	publisher := &testutils.MockAlertPublisher{FailuresLeft: 2}

	svc := alerter.NewAlerter(zap.NewNop(), detector.NewDetector(5.0), publisher, reader)
	run(t, svc)

	publisher.Mu.Lock()
	defer publisher.Mu.Unlock()
	if len(publisher.Published) != 1 {
		t.Fatalf("Expected the alert published once after retries, got %d", len(publisher.Published))
	}
	if publisher.Attempts != 3 {
		t.Errorf("Expected 3 publish attempts, got %d", publisher.Attempts)
	}

	// The retried alert carries the original comparison, not a re-evaluation
	// of 110 against itself.
	a := publisher.Published[0]
	if !a.PreviousPrice.Equal(decimal.NewFromInt(100)) || !a.CurrentPrice.Equal(decimal.NewFromInt(110)) {
		t.Errorf("Alert lost its prices across retries: prev=%s cur=%s", a.PreviousPrice, a.CurrentPrice)
	}

	reader.Mu.Lock()
	defer reader.Mu.Unlock()
	if len(reader.Committed) != 2 {
		t.Errorf("Both offsets should commit once the alert is durable, got %v", reader.Committed)
	}
}

func TestAlerter_PoisonMessageIsCommitted(t *testing.T) {
	msgs := []kafka.Message{
		{Key: []byte("BTC"), Value: []byte("not-json"), Offset: 3},
	}
	reader := &testutils.MockKafkaReader{Messages: msgs}
	publisher := &testutils.MockAlertPublisher{}

	svc := alerter.NewAlerter(zap.NewNop(), detector.NewDetector(5.0), publisher, reader)
	run(t, svc)

	if len(publisher.Published) != 0 {
		t.Error("Poison message must not produce an alert")
	}
	if len(reader.Committed) != 1 {
		t.Errorf("Poison message must be acknowledged, got %d commits", len(reader.Committed))
	}
}
