package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doc-splitter/internal/cache"
	"doc-splitter/internal/config"
	"doc-splitter/internal/logger"
	"doc-splitter/internal/store"
)

func TestNewSplitter(t *testing.T) {
	cfg := config.Config{Tokenizer: "approx"}
	sp, err := NewSplitter(cfg, logger.Discard())
	require.NoError(t, err)

	overhead, err := sp.Overhead()
	require.NoError(t, err)
	assert.Positive(t, overhead, "chat envelope adds tokens")

	docs, err := sp.Split("# Title\nbody\n", 1000)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, []string{"Title"}, docs[0].Metadata.Headers.Get(1))

	_, err = NewSplitter(config.Config{Tokenizer: "bogus"}, logger.Discard())
	assert.Error(t, err)
}

func TestBuildCacheFallsBack(t *testing.T) {
	c := buildCache(config.Config{}, logger.Discard())
	assert.IsType(t, &cache.NoOpCache{}, c)

	c = buildCache(config.Config{RedisAddr: "127.0.0.1:1"}, logger.Discard())
	assert.IsType(t, &cache.NoOpCache{}, c)
}

func TestBuildEmbedderOptional(t *testing.T) {
	e, err := buildEmbedder(config.Config{}, logger.Discard())
	require.NoError(t, err)
	assert.Nil(t, e)

	e, err = buildEmbedder(config.Config{OpenAIKey: "sk-test"}, logger.Discard())
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestBuildRequiresURLs(t *testing.T) {
	_, err := buildStore(config.Config{StoreProvider: "postgres"}, logger.Discard())
	assert.ErrorContains(t, err, "DB_URL")

	_, err = buildStore(config.Config{StoreProvider: "mysql"}, logger.Discard())
	assert.ErrorContains(t, err, "invalid STORE_PROVIDER")

	_, _, err = buildQueue(config.Config{QueueProvider: "nats"}, logger.Discard())
	assert.ErrorContains(t, err, "QUEUE_URL")
}

func TestBuildSQLiteStore(t *testing.T) {
	st, err := buildStore(config.Config{StoreProvider: "sqlite", DBURL: filepath.Join(t.TempDir(), "app.db")}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, st)
	assert.NoError(t, st.(*store.SQLiteStore).Close())
}
