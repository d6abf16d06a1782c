package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/alerter"
	"github.com/alexlondon07/cryptostream/cmd/alerter/internal/detector"
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Kafka.Brokers,
		Topic:             cfg.Kafka.PricesTopic,
		GroupID:           cfg.Kafka.AlerterGroup,
		MinBytes:          200,
		MaxBytes:          10e6,
		MaxWait:           200 * time.Millisecond,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    10 * time.Second,
	})

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.AlertsTopic,
		Balancer:     &kafka.Hash{}, // key by symbol, same partitioning as prices
		RequiredAcks: kafka.RequireAll,
	}

	det := detector.NewDetector(cfg.Alert.ThresholdPercent)
	publisher := alerter.NewPublisher(logger, writer, rdb)
	svc := alerter.NewAlerter(logger, det, publisher, reader)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		if err := svc.Run(ctx); err != nil {
			logger.Error("Alerter stopped with error", zap.Error(err))
		}
		close(done)
	}()

	<-sigChan
	logger.Info("Shutdown signal received, stopping alerter...")
	cancel()
	<-done

	if err := reader.Close(); err != nil {
		logger.Error("Error closing reader", zap.Error(err))
	}
	if err := writer.Close(); err != nil {
		logger.Error("Error closing writer", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Error("Error closing Redis", zap.Error(err))
	}

	logger.Info("Alerter exited cleanly")
}
