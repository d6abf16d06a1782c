package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Alert     AlertConfig     `mapstructure:"alert"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Backfill  BackfillConfig  `mapstructure:"backfill"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
}

type AppConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level     string `mapstructure:"level" validate:"oneof=debug info warn error"`
	File      string `mapstructure:"file"` // empty = stdout only
	MaxSizeMB int    `mapstructure:"max_size_mb"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers" validate:"required,min=1"`
	PricesTopic     string   `mapstructure:"prices_topic" validate:"required"`
	AlertsTopic     string   `mapstructure:"alerts_topic" validate:"required"`
	BackfillTopic   string   `mapstructure:"backfill_topic" validate:"required"`
	ProcessorGroup  string   `mapstructure:"processor_group"`
	AlerterGroup    string   `mapstructure:"alerter_group"`
	WorkerGroup     string   `mapstructure:"worker_group"`
	PricePartitions int      `mapstructure:"price_partitions" validate:"min=1"`
}

type AlertConfig struct {
	ThresholdPercent float64 `mapstructure:"threshold_percent" validate:"gt=0"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

type BackfillConfig struct {
	InflightWindow time.Duration `mapstructure:"inflight_window" validate:"gt=0"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"min=1"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	NewsBaseURL    string        `mapstructure:"news_base_url"`
	NewsAPIKey     string        `mapstructure:"news_api_key"`
}

type ProcessorConfig struct {
	NumWorkers int `mapstructure:"num_workers" validate:"min=1"`
}

type FetcherConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	BaseURL  string        `mapstructure:"base_url" validate:"required"`
	CoinIDs  []string      `mapstructure:"coin_ids" validate:"min=1"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	// This ensures variables like APP_PORT are available as real env vars
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults (12-Factor App: Dev/Prod Parity)
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.prices_topic", "crypto-prices")
	v.SetDefault("kafka.alerts_topic", "price-alerts")
	v.SetDefault("kafka.backfill_topic", "news-backfill")
	v.SetDefault("kafka.processor_group", "price-processor-group")
	v.SetDefault("kafka.alerter_group", "alert-service-group")
	v.SetDefault("kafka.worker_group", "news-worker-group")
	v.SetDefault("kafka.price_partitions", 3)

	v.SetDefault("alert.threshold_percent", 5.0)
	v.SetDefault("cache.ttl", time.Hour)

	v.SetDefault("backfill.inflight_window", 30*time.Second)
	v.SetDefault("backfill.max_attempts", 5)
	v.SetDefault("backfill.retry_delay", 5*time.Second)
	v.SetDefault("backfill.news_base_url", "http://api.mediastack.com/v1")
	v.SetDefault("backfill.news_api_key", "")

	v.SetDefault("processor.num_workers", 4)

	v.SetDefault("fetcher.interval", 60*time.Second)
	v.SetDefault("fetcher.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("fetcher.coin_ids", []string{"bitcoin", "ethereum", "solana"})

	// 3. Configure Viper to read Environment Variables
	// This maps dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// This is crucial for Viper to map flat Env Vars (APP_PORT) to nested structs (App.Port)
	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.file", "logger.max_size_mb")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.brokers", "kafka.prices_topic", "kafka.alerts_topic", "kafka.backfill_topic")
	bindEnv(v, "kafka.processor_group", "kafka.alerter_group", "kafka.worker_group", "kafka.price_partitions")
	bindEnv(v, "alert.threshold_percent", "cache.ttl")
	bindEnv(v, "backfill.inflight_window", "backfill.max_attempts", "backfill.retry_delay")
	bindEnv(v, "backfill.news_base_url", "backfill.news_api_key")
	bindEnv(v, "processor.num_workers")
	bindEnv(v, "fetcher.interval", "fetcher.base_url", "fetcher.coin_ids")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// 6. Validation
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
