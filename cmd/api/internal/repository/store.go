package repository

import (
	"context"
	"errors"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// ErrNotFound is returned for unknown symbols, absent stats and news cache
// misses. Expired cache entries look exactly like absent ones.
var ErrNotFound = errors.New("not found")

// CryptoStore is the read-side view of the keyed state store.
type CryptoStore interface {
	ListSymbols(ctx context.Context) ([]string, error)
	GetCurrentPrice(ctx context.Context, symbol string) (models.PriceEvent, error)
	GetAllCurrentPrices(ctx context.Context) ([]models.PriceEvent, error)
	GetStats(ctx context.Context, symbol string) (models.PriceStats, error)
	GetNews(ctx context.Context, date string) ([]byte, error)
	Close() error
}

// AlertFeed streams published alerts to the websocket hub.
type AlertFeed interface {
	// RunPubSub blocks, invoking onAlert for every alert payload until the
	// context is cancelled.
	RunPubSub(ctx context.Context, onAlert func(symbol string, payload []byte))
}
