package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alexlondon07/cryptostream/cmd/fetcher/internal/feed"
	"github.com/alexlondon07/cryptostream/pkg/models"
)

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time        { return m.CurrentTime }
func (m *MockClock) Sleep(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }

// MockPriceSource replays a fixed batch, or fails.
type MockPriceSource struct {
	Events     []models.PriceEvent
	ShouldFail bool
	Calls      int
	Mu         sync.Mutex
}

func (m *MockPriceSource) FetchPrices(ctx context.Context, ids []string) ([]models.PriceEvent, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls++
	if m.ShouldFail {
		return nil, errors.New("upstream unavailable")
	}
	return m.Events, nil
}

type MockKafkaConn struct {
	CreatedTopics    []string
	CreatedPartCount []int
}

func (m *MockKafkaConn) Controller() (kafka.Broker, error) {
	return kafka.Broker{Host: "localhost", Port: 9092}, nil
}
func (m *MockKafkaConn) Close() error { return nil }
func (m *MockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	for _, t := range topics {
		m.CreatedTopics = append(m.CreatedTopics, t.Topic)
		m.CreatedPartCount = append(m.CreatedPartCount, t.NumPartitions)
	}
	return nil
}
func (m *MockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	// Simulate "Ready" state immediately
	return []kafka.Partition{{ID: 0}}, nil
}

type MockKafkaDialer struct {
	ConnSpy *MockKafkaConn
}

func (m *MockKafkaDialer) DialContext(ctx context.Context, network, address string) (feed.KafkaConn, error) {
	if m.ConnSpy == nil {
		m.ConnSpy = &MockKafkaConn{}
	}
	return m.ConnSpy, nil
}
