package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	readinessChecks = 5
	readinessPause  = 200 * time.Millisecond
)

// TopicCreator provisions the prices topic before the first publish, so the
// initial batch cannot race broker auto-creation (which would default the
// partition count).
type TopicCreator struct {
	logger *zap.Logger
	dialer KafkaDialer
	clock  Clock
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock Clock) *TopicCreator {
	return &TopicCreator{
		logger: logger,
		dialer: dialer,
		clock:  clock,
	}
}

// EnsureTopic creates topicName with the given partition count and waits
// until the brokers report it. Creating a topic that already exists is not a
// failure; an unreachable cluster or a topic that never becomes visible is.
func (tc *TopicCreator) EnsureTopic(brokers []string, topicName string, partitions int) error {
	ctx := context.Background()

	conn, err := tc.dialAny(ctx, brokers)
	if err != nil {
		return fmt.Errorf("dial brokers: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("resolve controller: %w", err)
	}

	ctrlConn, err := tc.dialer.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		// Usually "already exists"; the visibility wait below is the arbiter.
		tc.logger.Info("Topic create request returned",
			zap.String("topic", topicName), zap.Error(err))
	}

	if !tc.awaitVisible(conn, topicName) {
		return fmt.Errorf("topic %s not visible after creation", topicName)
	}
	return nil
}

// dialAny returns a connection to the first reachable broker.
func (tc *TopicCreator) dialAny(ctx context.Context, brokers []string) (KafkaConn, error) {
	var lastErr error
	for _, addr := range brokers {
		conn, err := tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return nil, lastErr
}

func (tc *TopicCreator) awaitVisible(conn KafkaConn, topicName string) bool {
	for i := 0; i < readinessChecks; i++ {
		tc.clock.Sleep(readinessPause)
		parts, err := conn.ReadPartitions(topicName)
		if err == nil && len(parts) > 0 {
			tc.logger.Info("Topic ready",
				zap.String("topic", topicName), zap.Int("partitions", len(parts)))
			return true
		}
	}
	return false
}
