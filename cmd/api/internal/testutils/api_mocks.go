package testutils

import (
	"context"
	"sync"

	"github.com/alexlondon07/cryptostream/cmd/api/internal/repository"
)

// MockNewsReader is a map-backed stand-in for the news slice of the store.
type MockNewsReader struct {
	Mu      sync.Mutex
	Entries map[string][]byte
	Err     error
}

func NewMockNewsReader() *MockNewsReader {
	return &MockNewsReader{Entries: make(map[string][]byte)}
}

func (m *MockNewsReader) GetNews(ctx context.Context, date string) ([]byte, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if payload, ok := m.Entries[date]; ok {
		return payload, nil
	}
	return nil, repository.ErrNotFound
}

func (m *MockNewsReader) Put(date string, payload []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Entries[date] = payload
}

// MockBackfillPublisher counts backfill requests; Err makes them fail.
type MockBackfillPublisher struct {
	Mu       sync.Mutex
	Requests []string
	Err      error
}

func (m *MockBackfillPublisher) RequestBackfill(ctx context.Context, date string) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Requests = append(m.Requests, date)
	return nil
}

func (m *MockBackfillPublisher) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Requests)
}

// MockAlertFeed lets tests push alerts through the hub by hand.
type MockAlertFeed struct {
	mu      sync.Mutex
	onAlert func(symbol string, payload []byte)
}

func (m *MockAlertFeed) RunPubSub(ctx context.Context, onAlert func(symbol string, payload []byte)) {
	m.mu.Lock()
	m.onAlert = onAlert
	m.mu.Unlock()
	<-ctx.Done()
}

func (m *MockAlertFeed) Emit(symbol string, payload []byte) {
	m.mu.Lock()
	cb := m.onAlert
	m.mu.Unlock()
	if cb != nil {
		cb(symbol, payload)
	}
}

// MockClient records payloads broadcast to it.
type MockClient struct {
	Mu       sync.Mutex
	Name     string
	Payloads [][]byte
	Closed   bool
}

func (m *MockClient) ID() string { return m.Name }

func (m *MockClient) SendBytes(b []byte) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Payloads = append(m.Payloads, b)
}

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}
