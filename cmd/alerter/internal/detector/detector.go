package detector

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// percentPrecision is the number of fractional digits on changePercent.
const percentPrecision = 2

var hundred = decimal.NewFromInt(100)

// Detector tracks the last observed price per symbol and decides whether a
// new observation is a significant move. The state is in-memory and private
// to this instance: after a restart the first event per symbol never alerts,
// which is the accepted trade-off for not persisting it.
type Detector struct {
	threshold decimal.Decimal
	now       func() time.Time

	mu         sync.Mutex
	lastPrices map[string]decimal.Decimal
}

func NewDetector(thresholdPercent float64) *Detector {
	return &Detector{
		threshold:  decimal.NewFromFloat(thresholdPercent),
		now:        time.Now,
		lastPrices: make(map[string]decimal.Decimal),
	}
}

// Evaluate compares currentPrice against the last observed price for the
// symbol and returns an alert when the relative change reaches the threshold
// (inclusive). The last observed price is always updated, alert or not.
func (d *Detector) Evaluate(symbol string, currentPrice decimal.Decimal) (*models.PriceAlert, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	previousPrice, seen := d.lastPrices[symbol]
	d.lastPrices[symbol] = currentPrice

	if !seen {
		// First observation for this symbol, nothing to compare against.
		return nil, false
	}
	if previousPrice.IsZero() {
		// Guard the division; a zero previous price means "skip", not "panic".
		return nil, false
	}

	changePercent := currentPrice.Sub(previousPrice).
		Div(previousPrice).
		Mul(hundred).
		Round(percentPrecision)

	if changePercent.Abs().LessThan(d.threshold) {
		return nil, false
	}

	alertType := models.AlertTypeIncrease
	verb := "increased"
	if changePercent.IsNegative() {
		alertType = models.AlertTypeDecrease
		verb = "decreased"
	}

	alert := &models.PriceAlert{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		AlertType:     alertType,
		PreviousPrice: previousPrice,
		CurrentPrice:  currentPrice,
		ChangePercent: changePercent,
		Timestamp:     d.now(),
		Message: fmt.Sprintf("%s %s %s%% from $%s to $%s",
			symbol, verb, changePercent.Abs(), previousPrice, currentPrice),
	}
	return alert, true
}
