package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alexlondon07/cryptostream/cmd/api/internal/cacheaside"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/handlers"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/hub"
	"github.com/alexlondon07/cryptostream/cmd/api/internal/repository"
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

	store := repository.NewRedisStore(rdb)

	backfillWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.BackfillTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	publisher := cacheaside.NewKafkaBackfillPublisher(backfillWriter)
	coordinator := cacheaside.NewCoordinator(store, publisher, logger, cfg.Backfill.InflightWindow)

	ctx, cancel := context.WithCancel(context.Background())
	alertHub := hub.NewHub(store, logger)
	go alertHub.Run(ctx)

	handler := handlers.NewHandler(store, coordinator, alertHub, logger)
	srv := &http.Server{Addr: cfg.App.Port, Handler: handler.Routes()}

	go func() {
		logger.Info("API Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutdown signal received, stopping API...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	alertHub.Shutdown()
	if err := backfillWriter.Close(); err != nil {
		logger.Error("Error closing writer", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		logger.Error("Error closing store", zap.Error(err))
	}

	logger.Info("Shutdown Complete")
}
