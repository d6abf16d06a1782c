package stats

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// pricePrecision is the number of fractional digits kept on derived values.
const pricePrecision = 2

// Seed returns the initial stats record for a symbol's first observation.
// SampleCount starts at 0 so the first fold lands on 1.
func Seed(symbol string, price decimal.Decimal, now time.Time) models.PriceStats {
	return models.PriceStats{
		Symbol:         symbol,
		CurrentPrice:   price,
		MinPrice:       price,
		MaxPrice:       price,
		AvgPrice:       price,
		SampleCount:    0,
		LastUpdated:    now,
		AppliedOffsets: make(map[string]int64),
	}
}

// Fold applies one price event to the running stats.
//
// The event is identified by its (partition, offset) pair; if the stats
// record already covers that offset the fold is a no-op and applied is
// false. This is what keeps sampleCount honest when the broker redelivers.
func Fold(stats models.PriceStats, event models.PriceEvent, partition int, offset int64, now time.Time) (models.PriceStats, bool) {
	pk := strconv.Itoa(partition)
	if last, ok := stats.AppliedOffsets[pk]; ok && offset <= last {
		return stats, false
	}

	price := event.PriceUsd
	n := decimal.NewFromInt(stats.SampleCount)
	newCount := stats.SampleCount + 1

	// newAvg = (oldAvg*n + v) / (n+1), rounded half-up
	newAvg := stats.AvgPrice.Mul(n).Add(price).
		DivRound(decimal.NewFromInt(newCount), pricePrecision)

	offsets := make(map[string]int64, len(stats.AppliedOffsets)+1)
	for k, v := range stats.AppliedOffsets {
		offsets[k] = v
	}
	offsets[pk] = offset

	return models.PriceStats{
		Symbol:         stats.Symbol,
		CurrentPrice:   price,
		MinPrice:       decimal.Min(stats.MinPrice, price),
		MaxPrice:       decimal.Max(stats.MaxPrice, price),
		AvgPrice:       newAvg,
		SampleCount:    newCount,
		LastUpdated:    now,
		AppliedOffsets: offsets,
	}, true
}
