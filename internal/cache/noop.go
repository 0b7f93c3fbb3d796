package cache

import (
	"context"
	"time"
)

// NoOpCache is used when Redis is not configured or unreachable. Every lookup
// is a miss.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetSplit(ctx context.Context, key string) (*SplitResult, error) {
	return nil, nil
}

func (c *NoOpCache) SetSplit(ctx context.Context, key string, result *SplitResult, ttl time.Duration) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}
