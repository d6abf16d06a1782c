package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/fetcher/internal/feed"
	"github.com/alexlondon07/cryptostream/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	clock := feed.RealClock{}

	dialer := &feed.RealKafkaDialer{Dialer: kafka.DefaultDialer}
	creator := feed.NewTopicCreator(logger, dialer, clock)
	if err := creator.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.PricesTopic, cfg.Kafka.PricePartitions); err != nil {
		logger.Warn("Topic provisioning failed, relying on broker auto-create", zap.Error(err))
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.PricesTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}

	client := feed.NewCoinGeckoClient(cfg.Fetcher.BaseURL)
	publisher := feed.NewPricePublisher(logger, writer)
	scheduler := feed.NewScheduler(logger, client, publisher, cfg.Fetcher.CoinIDs, cfg.Fetcher.Interval, clock)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	<-sigChan
	logger.Info("Shutdown signal received, stopping fetcher...")
	cancel()
	<-done

	if err := writer.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	} else {
		logger.Info("Kafka writer closed cleanly")
	}
}
