package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/api/internal/cacheaside"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/handlers"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/hub"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/repository"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/testutils"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

type fixture struct {
	srv       *httptest.Server
	mr        *miniredis.Miniredis
	publisher *testutils.MockBackfillPublisher
	feed      *testutils.MockAlertFeed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := repository.NewRedisStore(rdb)

	publisher := &testutils.MockBackfillPublisher{}
	coordinator := cacheaside.NewCoordinator(store, publisher, zap.NewNop(), time.Minute)

	feed := &testutils.MockAlertFeed{}
	alertHub := hub.NewHub(feed, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go alertHub.Run(ctx)
	t.Cleanup(cancel)

	h := handlers.NewHandler(store, coordinator, alertHub, zap.NewNop())
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, mr: mr, publisher: publisher, feed: feed}
}

func (f *fixture) seedPrice(t *testing.T, symbol string, price float64) {
	t.Helper()
	payload, err := json.Marshal(models.PriceEvent{
		Symbol:    symbol,
		PriceUsd:  decimal.NewFromFloat(price),
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	f.mr.Set("crypto:current:"+symbol, string(payload))
}

func (f *fixture) seedStats(t *testing.T, symbol string) {
	t.Helper()
	payload, err := json.Marshal(models.PriceStats{
		Symbol:         symbol,
		CurrentPrice:   decimal.NewFromInt(95),
		MinPrice:       decimal.NewFromInt(95),
		MaxPrice:       decimal.NewFromInt(103),
		AvgPrice:       decimal.RequireFromString("99.33"),
		SampleCount:    3,
		LastUpdated:    time.Now().UTC(),
		AppliedOffsets: map[string]int64{"0": 3},
	})
	require.NoError(t, err)
	f.mr.Set("crypto:stats:"+symbol, string(payload))
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHandlers_GetSymbols(t *testing.T) {
	f := newFixture(t)
	f.seedPrice(t, "BTC", 43000)
	f.seedPrice(t, "ETH", 2200)

	resp, body := get(t, f.srv.URL+"/api/v1/crypto/symbols")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Symbols []string `json:"symbols"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, []string{"BTC", "ETH"}, out.Symbols)
	assert.Equal(t, 2, out.Count)
}

func TestHandlers_GetPrice(t *testing.T) {
	f := newFixture(t)
	f.seedPrice(t, "BTC", 43000.50)

	resp, body := get(t, f.srv.URL+"/api/v1/crypto/prices/BTC")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var event models.PriceEvent
	require.NoError(t, json.Unmarshal(body, &event))
	assert.Equal(t, "BTC", event.Symbol)
	assert.True(t, event.PriceUsd.Equal(decimal.NewFromFloat(43000.50)))
}

func TestHandlers_GetPrice_UnknownSymbolIs404(t *testing.T) {
	f := newFixture(t)

	resp, body := get(t, f.srv.URL+"/api/v1/crypto/prices/XRP")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "not found")
}

func TestHandlers_GetStats_StripsOffsetBookkeeping(t *testing.T) {
	f := newFixture(t)
	f.seedStats(t, "BTC")

	resp, body := get(t, f.srv.URL+"/api/v1/crypto/stats/BTC")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats models.PriceStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(3), stats.SampleCount)
	assert.True(t, stats.AvgPrice.Equal(decimal.RequireFromString("99.33")))
	assert.NotContains(t, string(body), "appliedOffsets")
}

func TestHandlers_GetNews_MissTriggersBackfillAnd404(t *testing.T) {
	f := newFixture(t)

	resp, _ := get(t, f.srv.URL+"/api/v1/news/2026-08-30")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, f.publisher.Count())

	// Second miss inside the window: still 404, no second request.
	resp, _ = get(t, f.srv.URL+"/api/v1/news/2026-08-30")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, f.publisher.Count())
}

func TestHandlers_GetNews_HitAfterPopulate(t *testing.T) {
	f := newFixture(t)
	f.mr.Set("2026-08-30", `{"data":[{"title":"markets up"}]}`)

	resp, body := get(t, f.srv.URL+"/api/v1/news/2026-08-30")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":[{"title":"markets up"}]}`, string(body))
	assert.Zero(t, f.publisher.Count())
}

func TestHandlers_GetNews_BadDateIs400(t *testing.T) {
	f := newFixture(t)

	resp, _ := get(t, f.srv.URL+"/api/v1/news/not-a-date")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, f.publisher.Count())
}

func TestHandlers_AlertWebsocketStream(t *testing.T) {
	f := newFixture(t)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/alerts"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	alert := `{"symbol":"BTC","alertType":"INCREASE"}`

	// The hub registers the client asynchronously; keep emitting until the
	// frame arrives.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	received := make(chan []byte, 1)
	go func() {
		_, msg, err := conn.ReadMessage()
		if err == nil {
			received <- msg
		}
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-received:
			assert.JSONEq(t, alert, string(msg))
			return
		case <-deadline:
			t.Fatal("alert frame never arrived on the websocket")
		default:
			f.feed.Emit("BTC", []byte(alert))
			time.Sleep(20 * time.Millisecond)
		}
	}
}
