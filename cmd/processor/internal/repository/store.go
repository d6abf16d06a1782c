package repository

import (
	"context"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// StatsStore persists price events and their per-symbol running statistics.
type StatsStore interface {
	// ApplyEvent folds the event into the symbol's stats atomically and
	// persists the current price, the stats record and the history entry in
	// one transaction. applied is false when the (partition, offset) pair was
	// already folded in (broker redelivery).
	ApplyEvent(ctx context.Context, event models.PriceEvent, partition int, offset int64) (stats models.PriceStats, applied bool, err error)
	Close() error
}
