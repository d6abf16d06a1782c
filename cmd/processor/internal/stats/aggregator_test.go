package stats_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexlondon07/cryptostream/cmd/processor/internal/stats"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

func priceEvent(symbol string, price float64) models.PriceEvent {
	return models.PriceEvent{
		Symbol:    symbol,
		PriceUsd:  decimal.NewFromFloat(price),
		Timestamp: time.Now(),
	}
}

func TestFold_RunningStats(t *testing.T) {
	now := time.Now()
	s := stats.Seed("BTC", decimal.NewFromFloat(100), now)
	require.Equal(t, int64(0), s.SampleCount)

	prices := []float64{100, 103, 95}
	for i, p := range prices {
		var applied bool
		s, applied = stats.Fold(s, priceEvent("BTC", p), 0, int64(i), now)
		require.True(t, applied)
	}

	assert.Equal(t, int64(3), s.SampleCount)
	assert.True(t, s.MinPrice.Equal(decimal.NewFromFloat(95)), "min = %s", s.MinPrice)
	assert.True(t, s.MaxPrice.Equal(decimal.NewFromFloat(103)), "max = %s", s.MaxPrice)
	assert.True(t, s.AvgPrice.Equal(decimal.NewFromFloat(99.33)), "avg = %s", s.AvgPrice)
	assert.True(t, s.CurrentPrice.Equal(decimal.NewFromFloat(95)))
}

func TestFold_AvgRoundsHalfUp(t *testing.T) {
	now := time.Now()
	s := stats.Seed("ETH", decimal.NewFromFloat(10), now)

	// (10 + 10.01) / 2 = 10.005 -> 10.01 half-up
	s, applied := stats.Fold(s, priceEvent("ETH", 10), 0, 1, now)
	require.True(t, applied)
	s, applied = stats.Fold(s, priceEvent("ETH", 10.01), 0, 2, now)
	require.True(t, applied)

	assert.True(t, s.AvgPrice.Equal(decimal.NewFromFloat(10.01)), "avg = %s", s.AvgPrice)
}

func TestFold_RedeliveredOffsetIsNotCounted(t *testing.T) {
	now := time.Now()
	s := stats.Seed("BTC", decimal.NewFromFloat(100), now)

	s, applied := stats.Fold(s, priceEvent("BTC", 100), 1, 42, now)
	require.True(t, applied)
	require.Equal(t, int64(1), s.SampleCount)

	// Identical (partition, offset) delivered again
	dup, applied := stats.Fold(s, priceEvent("BTC", 100), 1, 42, now)
	assert.False(t, applied)
	assert.Equal(t, int64(1), dup.SampleCount)
	assert.True(t, dup.AvgPrice.Equal(s.AvgPrice))
}

func TestFold_OffsetsTrackedPerPartition(t *testing.T) {
	now := time.Now()
	s := stats.Seed("SOL", decimal.NewFromFloat(50), now)

	s, applied := stats.Fold(s, priceEvent("SOL", 50), 0, 7, now)
	require.True(t, applied)

	// Same offset number on a different partition is a distinct event.
	s, applied = stats.Fold(s, priceEvent("SOL", 52), 1, 7, now)
	assert.True(t, applied)
	assert.Equal(t, int64(2), s.SampleCount)
}

func TestFold_DoesNotMutateInputOffsets(t *testing.T) {
	now := time.Now()
	s := stats.Seed("BTC", decimal.NewFromFloat(100), now)
	folded, _ := stats.Fold(s, priceEvent("BTC", 101), 0, 1, now)

	_, ok := s.AppliedOffsets["0"]
	assert.False(t, ok, "seed offsets must not be mutated")
	assert.Equal(t, int64(1), folded.AppliedOffsets["0"])
}
