package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds runtime configuration shared by the gateway, the workers and the CLI.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760" validate:"min=1"` // 10MB in bytes

	// Splitting
	TokenLimit     int    `env:"TOKEN_LIMIT" envDefault:"1000" validate:"min=1"`
	Tokenizer      string `env:"TOKENIZER" envDefault:"tiktoken" validate:"oneof=tiktoken approx"`
	TokenizerModel string `env:"TOKENIZER_MODEL" envDefault:"gpt-4"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres" validate:"oneof=postgres sqlite"`
	DBURL         string `env:"DB_URL"` // Postgres DSN, or a file path for sqlite

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"nats" validate:"oneof=nats"`
	QueueURL      string `env:"QUEUE_URL"`

	// Split cache; empty address disables it
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	// Embeddings
	OpenAIKey      string `env:"OPENAI_API_KEY"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
}

var validate = validator.New()

// Load reads an optional .env file, then environment variables with defaults,
// and validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and provider names.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
