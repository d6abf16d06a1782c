package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

// Well-known CoinGecko ids. Anything else falls back to the uppercased id.
var symbolByID = map[string]string{
	"bitcoin":  "BTC",
	"ethereum": "ETH",
	"solana":   "SOL",
}

type coinData struct {
	Usd       float64 `json:"usd"`
	MarketCap float64 `json:"usd_market_cap"`
	Change24h float64 `json:"usd_24h_change"`
}

// CoinGeckoClient fetches spot prices from the CoinGecko simple-price API.
type CoinGeckoClient struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

func NewCoinGeckoClient(baseURL string) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

// FetchPrices returns one PriceEvent per requested coin id, ordered by
// symbol for deterministic publishing.
func (c *CoinGeckoClient) FetchPrices(ctx context.Context, ids []string) ([]models.PriceEvent, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build price request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read price response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CoinGecko returned %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]coinData
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	now := c.now().UTC()
	events := make([]models.PriceEvent, 0, len(payload))
	for id, data := range payload {
		events = append(events, models.PriceEvent{
			Symbol:         symbolFor(id),
			Name:           capitalize(id),
			PriceUsd:       decimal.NewFromFloat(data.Usd),
			PriceChange24h: decimal.NewFromFloat(data.Change24h),
			MarketCap:      decimal.NewFromFloat(data.MarketCap),
			Timestamp:      now,
		})
	}

	sort.Slice(events, func(i, j int) bool { return events[i].Symbol < events[j].Symbol })
	return events, nil
}

func symbolFor(id string) string {
	if sym, ok := symbolByID[id]; ok {
		return sym
	}
	return strings.ToUpper(id)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
