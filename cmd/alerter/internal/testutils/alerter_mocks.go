package testutils

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	Closed   bool

	Committed []kafka.Message
}

func (m *MockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}

	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.Closed {
		return kafka.Message{}, io.EOF
	}
	if m.Index >= len(m.Messages) {
		return kafka.Message{}, context.DeadlineExceeded
	}

	msg := m.Messages[m.Index]
	m.Index++
	return msg, nil
}

func (m *MockKafkaReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Committed = append(m.Committed, msgs...)
	return nil
}

func (m *MockKafkaReader) Close() error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
	return nil
}

var ErrPublishRefused = errors.New("broker refused the publish")

// MockAlertPublisher records published alerts. FailuresLeft is the number of
// publishes that fail before one succeeds; -1 fails forever.
type MockAlertPublisher struct {
	Mu           sync.Mutex
	Published    []models.PriceAlert
	FailuresLeft int
	Attempts     int
}

func (m *MockAlertPublisher) Publish(ctx context.Context, alert models.PriceAlert) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Attempts++
	if m.FailuresLeft != 0 {
		if m.FailuresLeft > 0 {
			m.FailuresLeft--
		}
		return ErrPublishRefused
	}
	m.Published = append(m.Published, alert)
	return nil
}

// MockKafkaWriter captures messages written to the alerts topic.
type MockKafkaWriter struct {
	Mu       sync.Mutex
	Messages []kafka.Message
	Err      error
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }
