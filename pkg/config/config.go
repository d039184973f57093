package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type (
	Config struct {
		HTTP        HTTP        `envPrefix:"HTTP_"`
		Logger      Logger      `envPrefix:"LOGGER_"`
		Telemetry   Telemetry   `envPrefix:"TELEMETRY_"`
		Cache       Cache       `envPrefix:"CACHE_"`
		Redis       Redis       `envPrefix:"REDIS_"`
		Upstream    Upstream    `envPrefix:"UPSTREAM_"`
		Passthrough Passthrough `envPrefix:"PASSTHROUGH_"`
		Worker      Worker      `envPrefix:"WORKER_"`
	}

	HTTP struct {
		Server Server `envPrefix:"SERVER_"`
	}

	Server struct {
		Port         string        `env:"PORT,required" validate:"required,numeric"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout  time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	}

	Logger struct {
		Level string `env:"LEVEL,required"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"journey-tiles"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Cache struct {
		Backend       string `env:"BACKEND" envDefault:"sqlite" validate:"oneof=memory sqlite redis filesystem"`
		BudgetBytes   int64  `env:"BUDGET_BYTES" envDefault:"268435456" validate:"gte=0"`
		SQLitePath    string `env:"SQLITE_PATH" envDefault:"journey-tiles.db"`
		FilesystemDir string `env:"FILESYSTEM_DIR" envDefault:"journey-tiles"`
	}

	Redis struct {
		Addr      string `env:"ADDR" envDefault:"localhost:6379"`
		Password  string `env:"PASSWORD" envDefault:""`
		DB        int    `env:"DB" envDefault:"0" validate:"gte=0"`
		KeyPrefix string `env:"KEY_PREFIX" envDefault:"journey-tile"`
	}

	Upstream struct {
		TileServerURL string        `env:"TILE_SERVER_URL" envDefault:"https://tile.openstreetmap.org" validate:"required,url"`
		FallbackURLs  []string      `env:"FALLBACK_URLS" envSeparator:"," validate:"dive,url"`
		Timeout       time.Duration `env:"TIMEOUT" envDefault:"10s" validate:"gt=0"`
		UserAgent     string        `env:"USER_AGENT" envDefault:"MemoLanes/1.0 (https://github.com/jktrn/MemoLanes)"`
		Referer       string        `env:"REFERER" envDefault:""`
		RateLimit     float64       `env:"RATE_LIMIT" envDefault:"0" validate:"gte=0"`
		RateBurst     int           `env:"RATE_BURST" envDefault:"4" validate:"gte=1"`
	}

	Passthrough struct {
		OriginURL string `env:"ORIGIN_URL" envDefault:"" validate:"omitempty,url"`
	}

	Worker struct {
		ActivationTimeout time.Duration `env:"ACTIVATION_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	return Parse()
}

// Parse reads the environment without touching .env files.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
