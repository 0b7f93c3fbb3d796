package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"doc-splitter/internal/cache"
	"doc-splitter/internal/config"
	"doc-splitter/internal/embeddings"
	"doc-splitter/internal/logger"
	"doc-splitter/internal/queue"
	"doc-splitter/internal/splitter"
	"doc-splitter/internal/store"
	"doc-splitter/internal/tokenizer"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config   config.Config
	Log      *slog.Logger
	Splitter *splitter.Splitter
	Store    store.Store
	Queue    queue.Queue
	Cache    cache.Cache
	// Embedder is nil when no OpenAI key is configured.
	Embedder embeddings.Embedder

	closers []func() error
}

// Build loads config and shared components.
func Build() (Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return Deps{}, err
	}
	log := logger.New(cfg.LogLevel)

	sp, err := NewSplitter(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize splitter: %w", err)
	}
	d := Deps{Config: cfg, Log: log, Splitter: sp}

	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	d.Store = st
	if c, ok := st.(interface{ Close() error }); ok {
		d.closers = append(d.closers, c.Close)
	}

	nc, q, err := buildQueue(cfg, log)
	if err != nil {
		_ = d.Close()
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	d.Queue = q
	d.closers = append(d.closers, func() error { nc.Close(); return nil })

	d.Cache = buildCache(cfg, log)
	d.closers = append(d.closers, d.Cache.Close)

	d.Embedder, err = buildEmbedder(cfg, log)
	if err != nil {
		_ = d.Close()
		return Deps{}, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return d, nil
}

// Close releases connections opened by Build.
func (d Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// NewSplitter builds a splitter over the configured tokenizer with the chat envelope.
func NewSplitter(cfg config.Config, log *slog.Logger) (*splitter.Splitter, error) {
	tok, err := tokenizer.New(cfg.Tokenizer, cfg.TokenizerModel)
	if err != nil {
		return nil, err
	}
	opts := splitter.DefaultOptions()
	opts.Logger = log
	log.Info("using tokenizer", "kind", cfg.Tokenizer, "model", cfg.TokenizerModel)
	return splitter.New(tok, opts), nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	case "sqlite":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=sqlite")
		}
		db, err := store.NewSQLite(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		log.Info("using SQLite store", "path", cfg.DBURL)
		return db, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: postgres, sqlite)", cfg.StoreProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (*nats.Conn, queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL, nats.Name("doc-splitter"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return nc, queue.NewNATS(log, nc), nil
	default:
		return nil, nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid option: nats)", cfg.QueueProvider)
	}
}

// buildCache falls back to a no-op cache when Redis is unset or unreachable.
func buildCache(cfg config.Config, log *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		log.Info("split cache disabled")
		return cache.NewNoOpCache()
	}
	rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Warn("redis unavailable, split cache disabled", "addr", cfg.RedisAddr, "err", err)
		return cache.NewNoOpCache()
	}
	log.Info("using Redis split cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	return rc
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	if cfg.OpenAIKey == "" {
		log.Warn("OPENAI_API_KEY not set, embeddings disabled")
		return nil, nil
	}
	embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
	}
	log.Info("using OpenAI embedder", "model", embedder.Model())
	return embedder, nil
}
