package backfill

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// MediaStackClient calls the external news API for one date's articles.
type MediaStackClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewMediaStackClient(baseURL, apiKey string) *MediaStackClient {
	return &MediaStackClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *MediaStackClient) Fetch(ctx context.Context, date string) ([]byte, error) {
	q := url.Values{}
	q.Set("access_key", c.apiKey)
	q.Set("date", date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/news?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build news request for %s: %w", date, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request for %s: %w", date, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read news response for %s: %w", date, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned %d for %s: %s", resp.StatusCode, date, string(body))
	}

	return body, nil
}
