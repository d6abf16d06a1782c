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

	"github.com/alexlondon07/cryptostream/cmd/worker/internal/backfill"
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
		Topic:             cfg.Kafka.BackfillTopic,
		GroupID:           cfg.Kafka.WorkerGroup,
		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           200 * time.Millisecond,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    10 * time.Second,
	})

	source := backfill.NewMediaStackClient(cfg.Backfill.NewsBaseURL, cfg.Backfill.NewsAPIKey)
	store := backfill.NewRedisNewsStore(rdb, cfg.Cache.TTL)
	worker := backfill.NewWorker(logger, reader, source, store, cfg.Backfill.MaxAttempts, cfg.Backfill.RetryDelay)

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		if err := worker.Run(ctx); err != nil {
			logger.Error("Worker stopped with error", zap.Error(err))
		}
		close(done)
	}()

	<-sigChan
	logger.Info("Shutdown signal received, stopping worker...")
	cancel()
	<-done

	if err := reader.Close(); err != nil {
		logger.Error("Error closing reader", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Error("Error closing Redis", zap.Error(err))
	}

	logger.Info("Worker exited cleanly")
}
