package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"doc-splitter/internal/splitter"
)

// Cache stores split results keyed by SplitKey. Splitting is a pure function of
// its inputs, so cached results never go stale.
type Cache interface {
	// GetSplit retrieves a cached result by key.
	// Returns nil if not found.
	GetSplit(ctx context.Context, key string) (*SplitResult, error)

	// SetSplit stores a result with TTL.
	SetSplit(ctx context.Context, key string, result *SplitResult, ttl time.Duration) error

	Close() error
}

// SplitResult is a cached split response.
type SplitResult struct {
	Chunks   []splitter.Doc `json:"chunks"`
	Overhead int            `json:"overhead"`
}

// SplitKey derives a cache key from everything that determines a split.
func SplitKey(model string, limit int, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(limit)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
