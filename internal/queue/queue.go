package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"doc-splitter/internal/retry"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	TaskTypeSplit TaskType = "split"
	TaskTypeEmbed TaskType = "embed"
)

// Task is a unit of work passed between the gateway and the workers.
type Task struct {
	ID          uuid.UUID
	Type        TaskType
	Payload     []byte
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
}

// SplitPayload asks the splitter worker to chunk an uploaded document.
type SplitPayload struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Content    string `json:"content"`
	TokenLimit int    `json:"token_limit"`
}

// EmbedPayload asks the embedder worker to embed a document's stored chunks.
type EmbedPayload struct {
	DocumentID string `json:"document_id"`
}

type Handler func(context.Context, Task) error

// Queue exposes a minimal contract to enqueue and consume tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Worker blocks, feeding tasks of taskType to handler until ctx is done.
	Worker(ctx context.Context, taskType TaskType, handler Handler) error
}

// EnqueueWithRetry attempts to enqueue with retries and exponential backoff.
func EnqueueWithRetry(ctx context.Context, q Queue, task Task, attempts int, base time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = q.Enqueue(ctx, task); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.ExponentialBackoff(attempt, base)):
		}
	}
	return err
}
