package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"doc-splitter/internal/retry"
)

const (
	subjectPrefix      = "tasks."
	defaultMaxAttempts = 5
)

// NewNATS constructs a thin NATS-based queue. Workers of one task type share a
// queue group so each task is handled once.
func NewNATS(log *slog.Logger, nc *nats.Conn) Queue {
	return &natsQueue{log: log, nc: nc, publish: nc.Publish, retryBase: time.Second}
}

type natsQueue struct {
	log       *slog.Logger
	nc        *nats.Conn
	publish   func(subject string, data []byte) error
	retryBase time.Duration
}

func subjectFor(t TaskType) string {
	return subjectPrefix + string(t)
}

func (q *natsQueue) Enqueue(_ context.Context, task Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Type == "" {
		return errors.New("task type required")
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.publish(subjectFor(task.Type), body)
}

func (q *natsQueue) Worker(ctx context.Context, taskType TaskType, handler Handler) error {
	group := "workers-" + string(taskType)
	sub, err := q.nc.QueueSubscribe(subjectFor(taskType), group, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg.Data, handler)
	})
	if err != nil {
		return err
	}
	<-ctx.Done()
	return sub.Drain()
}

func (q *natsQueue) handleMessage(ctx context.Context, data []byte, handler Handler) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		q.log.Error("failed to decode task", "err", err)
		return
	}

	if wait := time.Until(task.NotBefore); wait > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	if err := handler(ctx, task); err != nil {
		q.retryTask(ctx, task, err)
	}
}

func (q *natsQueue) retryTask(ctx context.Context, task Task, handlerErr error) {
	task.Attempts++
	if task.MaxAttempts == 0 {
		task.MaxAttempts = defaultMaxAttempts
	}

	if task.Attempts >= task.MaxAttempts {
		q.log.Error("task permanently failed", "id", task.ID, "type", task.Type, "attempts", task.Attempts, "err", handlerErr)
		return
	}
	task.NotBefore = time.Now().Add(retry.ExponentialBackoff(task.Attempts, q.retryBase))
	q.log.Warn("task failed, retrying", "id", task.ID, "type", task.Type, "attempt", task.Attempts, "err", handlerErr)
	if err := q.Enqueue(ctx, task); err != nil {
		q.log.Error("failed to re-enqueue task after failure", "id", task.ID, "type", task.Type, "original_err", handlerErr, "enqueue_err", err)
	}
}
