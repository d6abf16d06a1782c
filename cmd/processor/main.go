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

	"github.com/alexlondon07/cryptostream/cmd/processor/internal/processor"
	"github.com/alexlondon07/cryptostream/cmd/processor/internal/repository"
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
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.PricesTopic,
		GroupID:  cfg.Kafka.ProcessorGroup,
		MinBytes: 200,
		MaxBytes: 10e6,
		MaxWait:  200 * time.Millisecond,
		// Rebalancing: 3s heartbeat, 10s session timeout for responsive scaling
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    10 * time.Second,
	})

	store := repository.NewRedisStore(rdb)
	proc := processor.NewProcessor(cfg, logger, store, reader)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		if err := proc.Run(ctx); err != nil {
			logger.Error("Processor stopped with error", zap.Error(err))
		}
		close(done)
	}()

	<-sigChan
	logger.Info("Shutdown signal received, stopping processor...")
	cancel()
	<-done

	logger.Info("Closing Kafka Reader...")
	if err := reader.Close(); err != nil {
		logger.Error("Error closing reader", zap.Error(err))
	}

	logger.Info("Closing Redis...")
	if err := store.Close(); err != nil {
		logger.Error("Error closing store", zap.Error(err))
	}

	logger.Info("Processor exited cleanly")
}
