package testutils

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"
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

var ErrExternalAPIDown = errors.New("external API unavailable")

// MockNewsSource serves canned payloads per date. FailuresLeft[date] is the
// number of calls that error before one succeeds; -1 fails forever.
type MockNewsSource struct {
	Mu           sync.Mutex
	Payloads     map[string][]byte
	FailuresLeft map[string]int
	Calls        []string
}

func NewMockNewsSource() *MockNewsSource {
	return &MockNewsSource{
		Payloads:     make(map[string][]byte),
		FailuresLeft: make(map[string]int),
	}
}

func (m *MockNewsSource) Fetch(ctx context.Context, date string) ([]byte, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls = append(m.Calls, date)
	if n := m.FailuresLeft[date]; n != 0 {
		if n > 0 {
			m.FailuresLeft[date] = n - 1
		}
		return nil, ErrExternalAPIDown
	}
	if payload, ok := m.Payloads[date]; ok {
		return payload, nil
	}
	return []byte(`{"data":[]}`), nil
}
