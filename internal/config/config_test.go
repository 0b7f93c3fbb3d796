package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "TOKEN_LIMIT", "TOKENIZER", "TOKENIZER_MODEL", "STORE_PROVIDER", "QUEUE_PROVIDER", "CACHE_TTL", "EMBEDDING_MODEL"} {
		// Setenv restores the original value after the test.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	cfg, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"TokenLimit", cfg.TokenLimit, 1000},
		{"Tokenizer", cfg.Tokenizer, "tiktoken"},
		{"TokenizerModel", cfg.TokenizerModel, "gpt-4"},
		{"StoreProvider", cfg.StoreProvider, "postgres"},
		{"QueueProvider", cfg.QueueProvider, "nats"},
		{"CacheTTL", cfg.CacheTTL, 24 * time.Hour},
		{"EmbeddingModel", cfg.EmbeddingModel, "text-embedding-3-small"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TOKEN_LIMIT", "512")
	t.Setenv("TOKENIZER", "approx")
	t.Setenv("CACHE_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 512, cfg.TokenLimit)
	assert.Equal(t, "approx", cfg.Tokenizer)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero token limit", "TOKEN_LIMIT", "0"},
		{"unknown tokenizer", "TOKENIZER", "wordpiece"},
		{"unknown log level", "LOG_LEVEL", "verbose"},
		{"non-numeric port", "PORT", "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
