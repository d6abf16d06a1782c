package detector_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/detector"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestEvaluate_FirstObservationNeverAlerts(t *testing.T) {
	det := detector.NewDetector(5.0)

	alert, fired := det.Evaluate("BTC", d(1000000))
	assert.False(t, fired)
	assert.Nil(t, alert)
}

func TestEvaluate_ThresholdIsInclusive(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		current  float64
		fired    bool
		typ      string
		percent  string
	}{
		{"exactly at threshold fires", 100, 105, true, models.AlertTypeIncrease, "5"},
		{"just below threshold does not fire", 100, 104.9, false, "", ""},
		{"decrease at threshold fires", 100, 95, true, models.AlertTypeDecrease, "-5"},
		{"large drop fires", 100, 80, true, models.AlertTypeDecrease, "-20"},
		{"flat price does not fire", 100, 100, false, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			det := detector.NewDetector(5.0)
			_, fired := det.Evaluate("BTC", d(tc.previous))
			require.False(t, fired)

			alert, fired := det.Evaluate("BTC", d(tc.current))
			assert.Equal(t, tc.fired, fired)
			if !tc.fired {
				assert.Nil(t, alert)
				return
			}

			require.NotNil(t, alert)
			assert.Equal(t, tc.typ, alert.AlertType)
			assert.True(t, alert.ChangePercent.Equal(decimal.RequireFromString(tc.percent)),
				"changePercent = %s", alert.ChangePercent)
			assert.True(t, alert.PreviousPrice.Equal(d(tc.previous)),
				"previousPrice must be the prior observation, got %s", alert.PreviousPrice)
			assert.True(t, alert.CurrentPrice.Equal(d(tc.current)))
			assert.NotEmpty(t, alert.ID)
			assert.Contains(t, alert.Message, "BTC")
		})
	}
}

func TestEvaluate_ChangePercentRoundedToTwoDigits(t *testing.T) {
	det := detector.NewDetector(5.0)
	det.Evaluate("ETH", d(3))
	alert, fired := det.Evaluate("ETH", d(2.8))

	require.True(t, fired)
	// (2.8-3)/3*100 = -6.666... -> -6.67
	assert.True(t, alert.ChangePercent.Equal(decimal.RequireFromString("-6.67")),
		"changePercent = %s", alert.ChangePercent)
}

func TestEvaluate_LastPriceUpdatedEvenWithoutAlert(t *testing.T) {
	det := detector.NewDetector(5.0)
	det.Evaluate("BTC", d(100))

	_, fired := det.Evaluate("BTC", d(104)) // +4%, no alert
	require.False(t, fired)

	// +5.77% relative to 104, not to 100 (+9.9%)
	alert, fired := det.Evaluate("BTC", d(110))
	require.True(t, fired)
	assert.True(t, alert.PreviousPrice.Equal(d(104)))
	assert.True(t, alert.ChangePercent.Equal(decimal.RequireFromString("5.77")),
		"changePercent = %s", alert.ChangePercent)
}

func TestEvaluate_ZeroPreviousPriceIsSkipped(t *testing.T) {
	det := detector.NewDetector(5.0)
	det.Evaluate("DOGE", decimal.Zero)

	alert, fired := det.Evaluate("DOGE", d(1))
	assert.False(t, fired, "division by zero previous price must be guarded")
	assert.Nil(t, alert)

	// The zero was still recorded and replaced; normal detection resumes.
	alert, fired = det.Evaluate("DOGE", d(1.1))
	require.True(t, fired)
	assert.Equal(t, models.AlertTypeIncrease, alert.AlertType)
}

func TestEvaluate_SymbolsAreIndependent(t *testing.T) {
	det := detector.NewDetector(5.0)
	det.Evaluate("BTC", d(100))
	det.Evaluate("ETH", d(2000))

	alert, fired := det.Evaluate("BTC", d(110))
	require.True(t, fired)
	assert.Equal(t, "BTC", alert.Symbol)

	_, fired = det.Evaluate("ETH", d(2010)) // +0.5%
	assert.False(t, fired)
}

func TestEvaluate_CustomThreshold(t *testing.T) {
	det := detector.NewDetector(1.0)
	det.Evaluate("BTC", d(100))

	alert, fired := det.Evaluate("BTC", d(101))
	require.True(t, fired)
	assert.True(t, alert.ChangePercent.Equal(decimal.RequireFromString("1")))
}
