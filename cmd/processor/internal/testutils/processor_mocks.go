package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/alexlondon07/cryptostream/pkg/models"
)

type MockKafkaReader struct {
	Messages []kafka.Message
	Index    int
	Mu       sync.Mutex
	// Closed simulates a closed connection or end of stream
	Closed bool

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
		// Returning DeadlineExceeded is a clean way to stop the processor loop in tests
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

func (m *MockKafkaReader) CommittedOffsets() []int64 {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	offsets := make([]int64, 0, len(m.Committed))
	for _, msg := range m.Committed {
		offsets = append(offsets, msg.Offset)
	}
	return offsets
}

// MockStatsStore records applied events and can be primed to fail, so tests
// can check the commit-after-write ordering. FailFor[symbol] is the number
// of writes that error before one succeeds; -1 fails forever.
type MockStatsStore struct {
	Mu      sync.Mutex
	Applied []models.PriceEvent
	FailFor map[string]int

	// per symbol, per partition: highest applied offset
	seen map[string]map[int]int64
}

func NewMockStatsStore() *MockStatsStore {
	return &MockStatsStore{
		FailFor: make(map[string]int),
		seen:    make(map[string]map[int]int64),
	}
}

func (m *MockStatsStore) ApplyEvent(ctx context.Context, event models.PriceEvent, partition int, offset int64) (models.PriceStats, bool, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if n := m.FailFor[event.Symbol]; n != 0 {
		if n > 0 {
			m.FailFor[event.Symbol] = n - 1
		}
		return models.PriceStats{}, false, io.ErrUnexpectedEOF
	}

	byPartition, ok := m.seen[event.Symbol]
	if !ok {
		byPartition = make(map[int]int64)
		m.seen[event.Symbol] = byPartition
	}
	if last, ok := byPartition[partition]; ok && offset <= last {
		return models.PriceStats{Symbol: event.Symbol}, false, nil
	}
	byPartition[partition] = offset

	m.Applied = append(m.Applied, event)
	return models.PriceStats{
		Symbol:       event.Symbol,
		CurrentPrice: event.PriceUsd,
		SampleCount:  int64(len(m.Applied)),
	}, true, nil
}

func (m *MockStatsStore) Close() error { return nil }

func (m *MockStatsStore) AppliedSymbols() []string {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	symbols := make([]string, 0, len(m.Applied))
	for _, e := range m.Applied {
		symbols = append(symbols, e.Symbol)
	}
	return symbols
}
