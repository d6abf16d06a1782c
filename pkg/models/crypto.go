package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEvent represents a single market observation for a tracked symbol,
// produced once per fetch cycle and keyed by symbol for partition affinity.
type PriceEvent struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	PriceUsd       decimal.Decimal `json:"priceUsd"`
	PriceChange24h decimal.Decimal `json:"priceChange24h"`
	MarketCap      decimal.Decimal `json:"marketCap"`
	Timestamp      time.Time       `json:"timestamp"`
}

// PriceStats holds the running statistics for one symbol. AppliedOffsets
// records, per partition, the highest Kafka offset folded into the stats so
// that a redelivered event is never counted twice.
type PriceStats struct {
	Symbol         string           `json:"symbol"`
	CurrentPrice   decimal.Decimal  `json:"currentPrice"`
	MinPrice       decimal.Decimal  `json:"minPrice"`
	MaxPrice       decimal.Decimal  `json:"maxPrice"`
	AvgPrice       decimal.Decimal  `json:"avgPrice"`
	SampleCount    int64            `json:"sampleCount"`
	LastUpdated    time.Time        `json:"lastUpdated"`
	AppliedOffsets map[string]int64 `json:"appliedOffsets,omitempty"`
}

// Alert types emitted on the alerts topic.
const (
	AlertTypeIncrease = "INCREASE"
	AlertTypeDecrease = "DECREASE"
)

// PriceAlert is emitted when the relative price change for a symbol crosses
// the configured threshold. Immutable once published.
type PriceAlert struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	AlertType     string          `json:"alertType"`
	PreviousPrice decimal.Decimal `json:"previousPrice"`
	CurrentPrice  decimal.Decimal `json:"currentPrice"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	Timestamp     time.Time       `json:"timestamp"`
	Message       string          `json:"message"`
}

// BackfillRequest asks the worker to populate the news cache for one date.
type BackfillRequest struct {
	ID   string `json:"id"`
	Date string `json:"date"` // YYYY-MM-DD
}
